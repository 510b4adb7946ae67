package localstore

import (
	"crypto/rand"
	"fmt"
	"os"
)

// SecureWipe overwrites path with one pass of cryptographically random
// bytes, fsyncs, one pass of zeros, fsyncs, then unlinks it, per
// spec.md section 6's "Secure wipe of any persisted blob."
//
// This only protects against a casual post-deletion read of the same
// file offsets; it cannot guarantee destruction on copy-on-write or
// wear-leveling filesystems/flash media, which may retain the original
// blocks elsewhere. spec.md does not ask for more than this pass
// sequence, so no attempt is made to work around that.
func SecureWipe(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening for wipe: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat before wipe: %w", err)
	}
	size := info.Size()

	if err := overwritePass(f, size, randomPass); err != nil {
		f.Close()
		return err
	}
	if err := overwritePass(f, size, zeroPass); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing after wipe: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("unlinking wiped file: %w", err)
	}
	return nil
}

type passFiller func(buf []byte) error

func randomPass(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}

func zeroPass(buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func overwritePass(f *os.File, size int64, fill passFiller) error {
	buf := make([]byte, size)
	if err := fill(buf); err != nil {
		return fmt.Errorf("filling wipe buffer: %w", err)
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("writing wipe pass: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync after wipe pass: %w", err)
	}
	return nil
}
