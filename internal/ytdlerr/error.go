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

// Package ytdlerr provides a tagged-kind error type used uniformly across
// the operator and executor, in place of an error-union enum.
package ytdlerr

import "fmt"

// Kind classifies a failure for status reporting and recovery decisions.
// See SPEC_FULL.md section 7 for the recovery policy attached to each kind.
type Kind string

const (
	KubeAPI           Kind = "KubeAPI"
	S3                Kind = "S3"
	S3Credentials     Kind = "S3Credentials"
	S3Upload          Kind = "S3Upload"
	HTTP              Kind = "HTTP"
	ThumbnailDownload Kind = "ThumbnailDownload"
	Image             Kind = "Image"
	YoutubeDl         Kind = "YoutubeDl"
	VPNTimeout        Kind = "VPNTimeout"
	InvalidUserInput  Kind = "InvalidUserInput"
	PodScheduling     Kind = "PodScheduling"
	InvalidPhase      Kind = "InvalidPhase"
)

// Error is a tagged-kind error carrying a human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

// Sticky reports whether the kind's failure is terminal and must not be
// retried by recreating the failing pod until the user edits the resource.
func (k Kind) Sticky() bool {
	return k == InvalidUserInput || k == PodScheduling
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Wrap* constructors build an *Error of the given kind from a wrapped
// cause. Msg* constructors build one from a formatted message alone.

func WrapKubeAPI(err error) *Error { return newf(KubeAPI, err, "kubernetes API error") }

func WrapS3(err error) *Error { return newf(S3, err, "S3 error") }

func MsgS3Credentials(format string, args ...any) *Error {
	return newf(S3Credentials, nil, format, args...)
}

func MsgS3Upload(status int) *Error {
	return newf(S3Upload, nil, "upload returned status %d", status)
}

func WrapHTTP(err error) *Error { return newf(HTTP, err, "HTTP error") }

func MsgThumbnailDownload(status int) *Error {
	return newf(ThumbnailDownload, nil, "thumbnail fetch returned status %d", status)
}

func WrapImage(err error) *Error { return newf(Image, err, "image decode/encode error") }

func MsgYoutubeDl(exitCode int) *Error {
	return newf(YoutubeDl, nil, "youtube-dl exited with code %d", exitCode)
}

func MsgVPNTimeout(format string, args ...any) *Error {
	return newf(VPNTimeout, nil, format, args...)
}

func MsgInvalidUserInput(format string, args ...any) *Error {
	return newf(InvalidUserInput, nil, format, args...)
}

func MsgPodScheduling(message string) *Error {
	return newf(PodScheduling, nil, "%s", message)
}

func MsgInvalidPhase(phase string) *Error {
	return newf(InvalidPhase, nil, "unrecognized phase %q", phase)
}
