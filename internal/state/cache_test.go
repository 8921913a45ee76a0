// Copyright (c) 2026 Quartermaster Team
// Quartermaster - declarative server provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package state

import (
	"bytes"
	"testing"
)

func TestPasswordCacheSetGet(t *testing.T) {
	defer PasswordCache.Clear()

	PasswordCache.Set([]byte("s3cret"))
	got := PasswordCache.Get()
	if !bytes.Equal(got, []byte("s3cret")) {
		t.Fatalf("Get() = %q, want %q", got, "s3cret")
	}
}

func TestPasswordCacheGetReturnsCopy(t *testing.T) {
	defer PasswordCache.Clear()

	PasswordCache.Set([]byte("original"))
	got := PasswordCache.Get()
	for i := range got {
		got[i] = 'x'
	}
	if !bytes.Equal(PasswordCache.Get(), []byte("original")) {
		t.Error("mutating the returned slice must not affect the cached password")
	}
}

func TestPasswordCacheClear(t *testing.T) {
	PasswordCache.Set([]byte("gone"))
	PasswordCache.Clear()
	if got := PasswordCache.Get(); len(got) != 0 {
		t.Errorf("Get() after Clear() = %q, want empty", got)
	}
}

func TestPasswordCacheSetOverwrites(t *testing.T) {
	defer PasswordCache.Clear()

	PasswordCache.Set([]byte("first"))
	PasswordCache.Set([]byte("second"))
	if got := PasswordCache.Get(); !bytes.Equal(got, []byte("second")) {
		t.Errorf("Get() = %q, want %q", got, "second")
	}
}
