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

// Package vpn implements the readiness probe described in SPEC_FULL.md
// section 4.C: it blocks the worker container until the pod's public IP
// has changed from the value recorded before the VPN sidecar connected.
package vpn

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/thavlik/ytdl-operator/internal/resources"
	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

// Deadline is the hard timeout for the whole readiness probe: the VPN must
// connect and the public IP must change within this window or the
// executor bails.
const Deadline = 12 * time.Second

const (
	initialIPPollInterval = time.Second
	ipChangePollInterval  = 2 * time.Second
)

// Prober blocks callers until it is safe to issue outbound requests. The
// zero value uses the package-level defaults (IPFilePath, IPService); tests
// override the fields to avoid real network/filesystem access.
type Prober struct {
	// IPFilePath is the file written by the init container with the
	// pre-VPN public IP. Defaults to resources.IPFilePath.
	IPFilePath string

	// GetPublicIP fetches the current public IP. Defaults to an HTTP GET
	// against resources.IPService.
	GetPublicIP func(ctx context.Context) (string, error)

	// Now supports deterministic tests; defaults to time.Now.
	Now func() time.Time

	// Sleep supports deterministic tests; defaults to time.Sleep honoring
	// ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Wait implements the two-step protocol: read the unmasked IP, then poll
// until the public IP differs from it. Ordering: callers must not issue any
// outbound request before Wait returns successfully (invariant 4).
func (p *Prober) Wait(ctx context.Context, log logr.Logger) error {
	p.setDefaults()
	deadline := p.Now().Add(Deadline)

	unmasked, err := p.waitForInitialIP(ctx, deadline)
	if err != nil {
		return err
	}
	log.Info("unmasked public IP observed", "ip", unmasked)

	masked, err := p.waitForIPChange(ctx, unmasked, deadline)
	if err != nil {
		return err
	}
	log.Info("VPN connected, public IP masked", "ip", masked)

	return nil
}

func (p *Prober) waitForInitialIP(ctx context.Context, deadline time.Time) (string, error) {
	for {
		b, err := os.ReadFile(p.IPFilePath)
		if err == nil {
			return string(b), nil
		}
		if !os.IsNotExist(err) {
			return "", ytdlerr.WrapHTTP(err)
		}
		if p.Now().After(deadline) {
			return "", ytdlerr.MsgVPNTimeout("timed out waiting for initial ip file")
		}
		if err := p.Sleep(ctx, initialIPPollInterval); err != nil {
			return "", err
		}
	}
}

func (p *Prober) waitForIPChange(ctx context.Context, current string, deadline time.Time) (string, error) {
	for {
		ip, err := p.GetPublicIP(ctx)
		if err != nil {
			return "", err
		}
		if ip != current {
			return ip, nil
		}
		if p.Now().After(deadline) {
			return "", ytdlerr.MsgVPNTimeout("public IP did not change before deadline")
		}
		if err := p.Sleep(ctx, ipChangePollInterval); err != nil {
			return "", err
		}
	}
}

func (p *Prober) setDefaults() {
	if p.IPFilePath == "" {
		p.IPFilePath = resources.IPFilePath
	}
	if p.GetPublicIP == nil {
		p.GetPublicIP = httpGetPublicIP
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
}

func httpGetPublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resources.IPService, nil)
	if err != nil {
		return "", ytdlerr.WrapHTTP(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", ytdlerr.WrapHTTP(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", ytdlerr.WrapHTTP(err)
	}
	return string(body), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
