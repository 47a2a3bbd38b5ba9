// Package crypto encrypts artifacts with a key derived from a password.
//
// An encrypted artifact starts with a header:
//
//	magic "PBKENC01" | N, r, p (uint32, big endian) | salt (32 byte) | nonce prefix (16 byte)
//
// followed by XChaCha20-Poly1305 sealed chunks of at most 64 KiB plaintext.
// The nonce of chunk i is the nonce prefix followed by i as a big endian
// uint64. The additional data is a single byte which is 1 for the last chunk
// and 0 otherwise, so a truncated artifact fails to decrypt.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pushback/pushback/internal/errors"
)

const (
	chunkSize  = 64 * 1024
	prefixSize = chacha20poly1305.NonceSizeX - 8
	headerSize = len(magic) + 3*4 + saltSize + prefixSize
)

const magic = "PBKENC01"

// ErrUnauthenticated is returned when a chunk fails to decrypt, which means
// the password is wrong or the artifact was modified.
var ErrUnauthenticated = errors.New("wrong password or corrupted data")

// ErrTruncated is returned when an artifact ends before its final chunk.
var ErrTruncated = errors.New("encrypted data is truncated")

var (
	adMore = []byte{0}
	adLast = []byte{1}
)

type chunkCipher struct {
	aead    cipher.AEAD
	prefix  [prefixSize]byte
	counter uint64
}

func (c *chunkCipher) nonce() []byte {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	copy(nonce, c.prefix[:])
	binary.BigEndian.PutUint64(nonce[prefixSize:], c.counter)
	return nonce
}

// Writer encrypts everything written to it. Close must be called to write
// the final chunk.
type Writer struct {
	wr     io.Writer
	c      chunkCipher
	buf    []byte
	sealed []byte
	closed bool
}

// NewWriter writes the header to wr and returns a Writer that encrypts with
// a key derived from password.
func NewWriter(wr io.Writer, password string, params Params) (*Writer, error) {
	header := make([]byte, headerSize)
	copy(header, magic)
	pos := len(magic)
	for _, v := range []int{params.N, params.R, params.P} {
		binary.BigEndian.PutUint32(header[pos:], uint32(v))
		pos += 4
	}

	salt := header[pos : pos+saltSize]
	if _, err := io.ReadFull(rand.Reader, header[pos:]); err != nil {
		return nil, errors.Wrap(err, "reading random data")
	}

	key, err := deriveKey(params, salt, password)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "NewX")
	}

	w := &Writer{
		wr:     wr,
		buf:    make([]byte, 0, chunkSize),
		sealed: make([]byte, 0, chunkSize+aead.Overhead()),
	}
	w.c.aead = aead
	copy(w.c.prefix[:], header[pos+saltSize:])

	if _, err := wr.Write(header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}

	return w, nil
}

func (w *Writer) seal(plaintext, ad []byte) error {
	w.sealed = w.c.aead.Seal(w.sealed[:0], w.c.nonce(), plaintext, ad)
	w.c.counter++
	_, err := w.wr.Write(w.sealed)
	return errors.WithStack(err)
}

// Write buffers p and writes all completed chunks. A full chunk is only
// sealed once more data follows, the last chunk is sealed by Close.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write on closed crypto.Writer")
	}

	n := len(p)
	for len(p) > 0 {
		if len(w.buf) == chunkSize {
			if err := w.seal(w.buf, adMore); err != nil {
				return n - len(p), err
			}
			w.buf = w.buf[:0]
		}

		free := chunkSize - len(w.buf)
		if free > len(p) {
			free = len(p)
		}
		w.buf = append(w.buf, p[:free]...)
		p = p[free:]
	}

	return n, nil
}

// Close seals the final chunk. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.seal(w.buf, adLast)
}

// Reader decrypts an artifact written by Writer.
type Reader struct {
	rd     io.Reader
	c      chunkCipher
	sealed []byte
	plain  []byte
	done   bool
}

// NewReader reads the header from rd and derives the key from password.
func NewReader(rd io.Reader, password string) (*Reader, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(rd, header); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	if string(header[:len(magic)]) != magic {
		return nil, errors.New("not an encrypted artifact")
	}

	pos := len(magic)
	var params Params
	for _, v := range []*int{&params.N, &params.R, &params.P} {
		*v = int(binary.BigEndian.Uint32(header[pos:]))
		pos += 4
	}

	key, err := deriveKey(params, header[pos:pos+saltSize], password)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "NewX")
	}

	r := &Reader{
		rd:     rd,
		sealed: make([]byte, chunkSize+aead.Overhead()),
	}
	r.c.aead = aead
	copy(r.c.prefix[:], header[pos+saltSize:])
	return r, nil
}

func (r *Reader) open(sealed, ad []byte) bool {
	plain, err := r.c.aead.Open(r.plain[:0], r.c.nonce(), sealed, ad)
	if err != nil {
		return false
	}
	r.plain = plain
	r.c.counter++
	return true
}

func (r *Reader) next() error {
	n, err := io.ReadFull(r.rd, r.sealed)
	switch {
	case err == io.EOF:
		return ErrTruncated
	case err == io.ErrUnexpectedEOF:
		if !r.open(r.sealed[:n], adLast) {
			return ErrUnauthenticated
		}
		r.done = true
		return nil
	case err != nil:
		return errors.WithStack(err)
	}

	if r.open(r.sealed, adMore) {
		return nil
	}

	// a full sized final chunk
	if !r.open(r.sealed, adLast) {
		return ErrUnauthenticated
	}
	r.done = true

	var probe [1]byte
	if m, _ := io.ReadFull(r.rd, probe[:]); m > 0 {
		return errors.New("trailing data after final chunk")
	}
	return nil
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.plain) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if err := r.next(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.plain)
	r.plain = r.plain[n:]
	return n, nil
}
