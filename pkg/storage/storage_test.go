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
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFileStorage(t *testing.T, backup bool) (Storage, string) {
	dir, err := ioutil.TempDir("", "storageTest")
	require.Nil(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	cfg := NewDefaultConfig()
	cfg.Backup = backup
	cfg.LockWaitMs = 0
	s, err := NewStorage(cfg)
	require.Nil(t, err)
	return s, dir
}

func TestNewStorage(t *testing.T) {
	_, err := NewStorage(&Config{Type: "s3"})
	assert.NotNil(t, err)

	s, err := NewStorage(&Config{Type: TypeInMem})
	assert.Nil(t, err)
	assert.Equal(t, "[inmem]", s.(*inmemStorage).String())
}

func TestConfigApply(t *testing.T) {
	c := NewDefaultConfig()
	c.Apply(nil)
	c.Apply(&Config{Backup: true, LockWaitMs: 10})
	assert.Equal(t, TypeFile, c.Type)
	assert.True(t, c.Backup)
	assert.Equal(t, 10*time.Millisecond, c.LockWait())
	assert.Nil(t, c.Check())

	c.LockWaitMs = -1
	assert.NotNil(t, c.Check())
	assert.NotNil(t, (&Config{}).Check())
}

func TestInMemStorage(t *testing.T) {
	s := newInMemStorage()
	_, err := s.ReadData("a.png")
	assert.Equal(t, os.ErrNotExist, err)

	buf := []byte{1, 2, 3}
	assert.Nil(t, s.WriteData("a.png", buf))
	buf[0] = 10
	res, err := s.ReadData("a.png")
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3}, res)
}

func TestInMemLock(t *testing.T) {
	s := newInMemStorage()
	unlock, err := s.Lock(context.Background(), "a.png")
	require.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Lock(ctx, "a.png")
	assert.Equal(t, ErrLocked, err)

	// other keys are independent
	unlock2, err := s.Lock(context.Background(), "b.png")
	require.Nil(t, err)
	unlock2()

	unlock()
	unlock, err = s.Lock(context.Background(), "a.png")
	assert.Nil(t, err)
	unlock()
}

func TestInMemLockCancel(t *testing.T) {
	s := newInMemStorage()
	unlock, err := s.Lock(context.Background(), "a.png")
	require.Nil(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = s.Lock(ctx, "a.png")
	assert.Equal(t, context.Canceled, errors.Cause(err))
}

func TestFileStorageReadWrite(t *testing.T) {
	s, dir := testFileStorage(t, false)
	fn := filepath.Join(dir, "a.png")

	_, err := s.ReadData(fn)
	assert.Equal(t, os.ErrNotExist, err)

	assert.Nil(t, s.WriteData(fn, []byte("first")))
	assert.Nil(t, s.WriteData(fn, []byte("second")))
	res, err := s.ReadData(fn)
	assert.Nil(t, err)
	assert.Equal(t, "second", string(res))

	_, err = os.Stat(fn + cBackupExt)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fn + cTempExt)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStorageBackup(t *testing.T) {
	s, dir := testFileStorage(t, true)
	fn := filepath.Join(dir, "a.png")

	assert.Nil(t, s.WriteData(fn, []byte("first")))
	_, err := os.Stat(fn + cBackupExt)
	assert.True(t, os.IsNotExist(err))

	assert.Nil(t, s.WriteData(fn, []byte("second")))
	bak, err := ioutil.ReadFile(fn + cBackupExt)
	assert.Nil(t, err)
	assert.Equal(t, "first", string(bak))
}

func testLockPath(t *testing.T, fn string) string {
	lp, err := lockPath(fn)
	require.Nil(t, err)
	t.Cleanup(func() { _ = os.Remove(lp) })
	return lp
}

func TestFileStorageLock(t *testing.T) {
	s, dir := testFileStorage(t, false)
	fn := filepath.Join(dir, "a.png")
	lp := testLockPath(t, fn)

	unlock, err := s.Lock(context.Background(), fn)
	require.Nil(t, err)

	// the lock file is kept out of the image directory
	_, err = os.Stat(fn + cLockExt)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(lp)
	assert.Nil(t, err)
	files, err := ioutil.ReadDir(dir)
	require.Nil(t, err)
	assert.Equal(t, 0, len(files))

	_, err = s.Lock(context.Background(), fn)
	assert.Equal(t, ErrLocked, errors.Cause(err))

	unlock()
	unlock, err = s.Lock(context.Background(), fn)
	assert.Nil(t, err)
	unlock()
}

func TestFileStorageLockWait(t *testing.T) {
	s, dir := testFileStorage(t, false)
	s.(*fileStorage).lockWait = time.Second
	fn := filepath.Join(dir, "a.png")
	testLockPath(t, fn)

	unlock, err := s.Lock(context.Background(), fn)
	require.Nil(t, err)
	go func() {
		time.Sleep(100 * time.Millisecond)
		unlock()
	}()

	unlock2, err := s.Lock(context.Background(), fn)
	require.Nil(t, err)
	unlock2()
}

func TestFileStorageLockWaitExpired(t *testing.T) {
	s, dir := testFileStorage(t, false)
	s.(*fileStorage).lockWait = 50 * time.Millisecond
	fn := filepath.Join(dir, "a.png")
	testLockPath(t, fn)

	unlock, err := s.Lock(context.Background(), fn)
	require.Nil(t, err)
	defer unlock()

	_, err = s.Lock(context.Background(), fn)
	assert.Equal(t, ErrLocked, errors.Cause(err))
}

func TestFileStorageLockCancel(t *testing.T) {
	s, dir := testFileStorage(t, false)
	s.(*fileStorage).lockWait = 10 * time.Second
	fn := filepath.Join(dir, "a.png")
	testLockPath(t, fn)

	unlock, err := s.Lock(context.Background(), fn)
	require.Nil(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err = s.Lock(ctx, fn)
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.True(t, time.Since(start) < 5*time.Second)
}

func TestLockPath(t *testing.T) {
	dir, err := ioutil.TempDir("", "storageTest")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	lp1, err := lockPath(filepath.Join(dir, "a.png"))
	require.Nil(t, err)
	lp2, err := lockPath(filepath.Join(dir, "sub", "..", "a.png"))
	require.Nil(t, err)
	lp3, err := lockPath(filepath.Join(dir, "b.png"))
	require.Nil(t, err)

	assert.Equal(t, lp1, lp2)
	assert.NotEqual(t, lp1, lp3)
	assert.Equal(t, os.TempDir(), filepath.Dir(lp1))
}
