/*
Copyright 2024 OpenClaw.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package vpn

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

func TestWaitSucceedsOnIPChange(t *testing.T) {
	dir := t.TempDir()
	ipFile := filepath.Join(dir, "ip")
	if err := os.WriteFile(ipFile, []byte("1.2.3.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	p := &Prober{
		IPFilePath: ipFile,
		GetPublicIP: func(ctx context.Context) (string, error) {
			calls++
			if calls < 2 {
				return "1.2.3.4", nil
			}
			return "5.6.7.8", nil
		},
		Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	}

	if err := p.Wait(context.Background(), logr.Discard()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if calls < 2 {
		t.Fatalf("expected at least 2 polls before IP changed, got %d", calls)
	}
}

func TestWaitFailsWhenIPFileNeverAppears(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist")

	now := time.Now()
	elapsed := time.Duration(0)
	p := &Prober{
		IPFilePath: missing,
		Now:        func() time.Time { return now.Add(elapsed) },
		Sleep: func(ctx context.Context, d time.Duration) error {
			elapsed += Deadline // force the deadline past on first sleep
			return nil
		},
	}

	err := p.Wait(context.Background(), logr.Discard())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	kind, ok := ytdlerr.KindOf(err)
	if !ok || kind != ytdlerr.VPNTimeout {
		t.Fatalf("expected VPNTimeout error, got %v (kind=%v ok=%v)", err, kind, ok)
	}
}

func TestWaitFailsWhenIPNeverChanges(t *testing.T) {
	dir := t.TempDir()
	ipFile := filepath.Join(dir, "ip")
	if err := os.WriteFile(ipFile, []byte("1.2.3.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	elapsed := time.Duration(0)
	p := &Prober{
		IPFilePath:  ipFile,
		GetPublicIP: func(ctx context.Context) (string, error) { return "1.2.3.4", nil },
		Now:         func() time.Time { return now.Add(elapsed) },
		Sleep: func(ctx context.Context, d time.Duration) error {
			elapsed += Deadline
			return nil
		},
	}

	err := p.Wait(context.Background(), logr.Discard())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	kind, ok := ytdlerr.KindOf(err)
	if !ok || kind != ytdlerr.VPNTimeout {
		t.Fatalf("expected VPNTimeout error, got %v", err)
	}
}
