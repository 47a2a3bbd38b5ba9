package test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/pushback/pushback/internal/test"
)

// TestLocation checks that the location is not empty.
func (s *Suite[C]) TestLocation(t *testing.T) {
	be := s.open(t)
	defer s.close(t, be)

	test.Assert(t, be.Location() != "", "empty location")
}

// TestSave stores objects of various sizes and reads them back.
func (s *Suite[C]) TestSave(t *testing.T) {
	be := s.open(t)
	defer s.close(t, be)

	for i, size := range []int{0, 1, 4096, 3*1024*1024 + 17} {
		name := fmt.Sprintf("20240309-14050%d-docs.tar.gz", i)
		data := test.Random(23+i, size)

		fi, err := be.Save(context.TODO(), name, bytes.NewReader(data), int64(size))
		test.OK(t, err)
		test.Equals(t, name, fi.Name)
		test.Equals(t, int64(size), fi.Size)
		test.Assert(t, fi.ID != "", "no ID returned for %v", name)

		buf, err := s.Load(s.Config, name)
		test.OK(t, err)
		test.Assert(t, bytes.Equal(data, buf), "content of %v differs", name)
	}
}

// TestSaveUnknownSize stores an object without announcing its size.
func (s *Suite[C]) TestSaveUnknownSize(t *testing.T) {
	be := s.open(t)
	defer s.close(t, be)

	data := test.Random(5, 10000)
	fi, err := be.Save(context.TODO(), "unknown-size.tar.gz", bytes.NewReader(data), -1)
	test.OK(t, err)
	test.Equals(t, int64(len(data)), fi.Size)
}

// TestSaveCanceled checks that a canceled context aborts the upload.
func (s *Suite[C]) TestSaveCanceled(t *testing.T) {
	be := s.open(t)
	defer s.close(t, be)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := be.Save(ctx, "canceled.tar.gz", bytes.NewReader(test.Random(7, 1000)), 1000)
	test.Assert(t, err != nil, "upload with canceled context succeeded")
}
