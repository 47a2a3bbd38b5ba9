package secret

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/pushback/pushback/internal/errors"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// readTerminal prints prompt on out and reads a password from the terminal
// in without echo. When ctx is canceled the terminal state is restored and
// the reading goroutine is leaked.
func readTerminal(ctx context.Context, in, out *os.File, prompt string) (string, error) {
	fd := int(out.Fd())
	state, err := term.GetState(fd)
	if err != nil {
		return "", errors.Wrap(err, "GetState")
	}

	done := make(chan struct{})
	var buf []byte

	go func() {
		defer close(done)
		_, err = fmt.Fprint(out, prompt)
		if err != nil {
			return
		}
		buf, err = term.ReadPassword(int(in.Fd()))
		if err != nil {
			return
		}
		_, err = fmt.Fprintln(out)
	}()

	select {
	case <-ctx.Done():
		_ = term.Restore(fd, state)
		return "", ctx.Err()
	case <-done:
	}

	if err != nil {
		return "", errors.Wrap(err, "ReadPassword")
	}

	return string(buf), nil
}

// readLine reads the first line of in.
func readLine(in io.Reader) (string, error) {
	sc := bufio.NewScanner(in)
	sc.Scan()

	return sc.Text(), errors.WithStack(sc.Err())
}
