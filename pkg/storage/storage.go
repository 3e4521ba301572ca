// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/jrivets/log4g"
	"github.com/logrange/pngstash/pkg/utils"
	"github.com/pkg/errors"
)

type (
	// Storage interface allows to read and write png streams by a key. For
	// the file storage the key is the file path.
	Storage interface {
		// ReadData returns the data stored by the key, os.ErrNotExist is
		// returned if there is no such key
		ReadData(key string) ([]byte, error)

		// WriteData replaces the data stored by the key
		WriteData(key string, val []byte) error

		// Lock acquires exclusive access to the key for a read-modify-write
		// sequence. The returned function must be called to release it.
		Lock(ctx context.Context, key string) (func(), error)
	}

	// inmemStorage struct an in-mem Storage implementation
	inmemStorage struct {
		lock   sync.Mutex
		data   map[string][]byte
		locks  map[string]chan struct{}
		logger log4g.Logger
	}

	// fileStorage stuct a file Storage implementation
	fileStorage struct {
		backup   bool
		lockWait time.Duration
		logger   log4g.Logger
	}

	StorageType string
)

const (
	TypeFile  StorageType = "file"
	TypeInMem StorageType = "inmem"

	cLockPrefix = "pngstash-"
	cLockExt    = ".lock"
	cBackupExt  = ".bak"
	cTempExt    = ".tmp"

	cLockRetryDelay = 50 * time.Millisecond
)

// ErrLocked is returned by Lock when the key is held by somebody else
// longer than allowed. Cancellation of the context passed to Lock is
// reported as context.Canceled instead.
var ErrLocked = fmt.Errorf("the file is locked by another process")

//===================== storage =====================

func NewStorage(cfg *Config) (Storage, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeFile:
		return newFileStorage(cfg), nil
	case TypeInMem:
		return newInMemStorage(), nil
	}

	return nil, fmt.Errorf("unknown storage type=%v", cfg.Type)
}

//===================== inmemStorage =====================

func newInMemStorage() Storage {
	logger := log4g.GetLogger("pngstash.storage").WithId("[inmem]").(log4g.Logger)
	return &inmemStorage{
		data:   make(map[string][]byte),
		locks:  make(map[string]chan struct{}),
		logger: logger,
	}
}

func (ms *inmemStorage) ReadData(key string) ([]byte, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	buf, ok := ms.data[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	ms.logger.Debug("Read key=", key, ", size=", len(buf))
	return utils.BytesCopy(buf), nil
}

func (ms *inmemStorage) WriteData(key string, val []byte) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.data[key] = utils.BytesCopy(val)
	ms.logger.Debug("Wrote key=", key, ", size=", len(val))
	return nil
}

func (ms *inmemStorage) Lock(ctx context.Context, key string) (func(), error) {
	ms.lock.Lock()
	ch, ok := ms.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		ms.locks[key] = ch
	}
	ms.lock.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrLocked
		}
		return nil, errors.Wrapf(ctx.Err(), "waiting for %s", key)
	}
	return func() { <-ch }, nil
}

func (ms *inmemStorage) String() string {
	return "[inmem]"
}

//===================== fileStorage =====================

func newFileStorage(cfg *Config) Storage {
	logger := log4g.GetLogger("pngstash.storage").WithId("[file]").(log4g.Logger)
	return &fileStorage{backup: cfg.Backup, lockWait: cfg.LockWait(), logger: logger}
}

func (fs *fileStorage) ReadData(key string) ([]byte, error) {
	data, err := ioutil.ReadFile(key)
	if os.IsNotExist(err) {
		return nil, os.ErrNotExist
	}
	if err == nil {
		fs.logger.Debug("Read file=", key, ", size=", len(data))
	}
	return data, err
}

// WriteData writes val to a temporary file and renames it to key, so the
// readers never see a partially written file.
func (fs *fileStorage) WriteData(key string, val []byte) error {
	perm := os.FileMode(0640)
	if fi, err := os.Stat(key); err == nil {
		perm = fi.Mode().Perm()
		if fs.backup {
			if err := copyFile(key, key+cBackupExt, perm); err != nil {
				return errors.Wrapf(err, "could not make backup of %s", key)
			}
			fs.logger.Info("Backup of ", key, " is saved to ", key+cBackupExt)
		}
	}

	tmp := key + cTempExt
	if err := ioutil.WriteFile(tmp, val, perm); err != nil {
		return errors.Wrapf(err, "could not write to %s", tmp)
	}
	if err := os.Rename(tmp, key); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "could not rename %s to %s", tmp, key)
	}

	fs.logger.Debug("Wrote file=", key, ", size=", len(val))
	return nil
}

// Lock holds an advisory lock on a file in the temp dir named after the
// absolute path of key. The png file itself is not locked because WriteData
// replaces it by rename.
func (fs *fileStorage) Lock(ctx context.Context, key string) (func(), error) {
	lp, err := lockPath(key)
	if err != nil {
		return nil, err
	}

	fl := flock.New(lp)
	locked, err := fl.TryLock()
	if err == nil && !locked && fs.lockWait > 0 {
		fs.logger.Debug("Waiting up to ", fs.lockWait, " for ", fl.Path())
		wctx, cancel := context.WithTimeout(ctx, fs.lockWait)
		locked, err = fl.TryLockContext(wctx, cLockRetryDelay)
		cancel()
		if err == context.DeadlineExceeded {
			err = nil
		}
		if err == context.Canceled {
			return nil, errors.Wrapf(err, "waiting for %s", key)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not lock %s", fl.Path())
	}
	if !locked {
		return nil, errors.Wrapf(ErrLocked, "%s", key)
	}

	fs.logger.Trace("Locked ", fl.Path())
	return func() {
		if err := fl.Unlock(); err != nil {
			fs.logger.Warn("Could not unlock ", fl.Path(), ", err=", err)
		}
	}, nil
}

func (fs *fileStorage) String() string {
	return fmt.Sprintf("[file: backup=%t, lockWait=%s]", fs.backup, fs.lockWait)
}

// lockPath returns the lock file for key. Different spellings of the same
// path share the lock file.
func lockPath(key string) (string, error) {
	abs, err := filepath.Abs(key)
	if err != nil {
		return "", errors.Wrapf(err, "could not resolve %s", key)
	}
	return filepath.Join(os.TempDir(), cLockPrefix+utils.Md5(abs)+cLockExt), nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	data, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(dst, data, perm)
}
