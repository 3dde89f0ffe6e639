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

// Package output resolves an S3OutputSpec and a parsed metadata object into
// a concrete S3 client and object key, per SPEC_FULL.md section 4.A.
package output

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	ytdlv1alpha1 "github.com/thavlik/ytdl-operator/api/v1alpha1"
	"github.com/thavlik/ytdl-operator/internal/ytdlerr"
)

const defaultRegion = "us-east-1"

// DefaultKeyTemplate is used when S3OutputSpec.Key is empty.
const DefaultKeyTemplate = "%(id)s.%(ext)s"

// Resolved is the result of resolving an S3OutputSpec: a ready-to-use S3
// client and the fully-expanded object key.
type Resolved struct {
	Client *s3.Client
	Bucket string
	Key    string
}

// tokenPattern matches a %(name)s template token.
var tokenPattern = regexp.MustCompile(`%\(([^)]+)\)s`)

// Resolve implements section 4.A: it resolves credentials and region into
// an S3 client, and expands the key template against metadata.
func Resolve(ctx context.Context, kube client.Reader, namespace string, spec ytdlv1alpha1.S3OutputSpec, metadata map[string]any) (*Resolved, error) {
	region := spec.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if spec.Secret != "" {
		provider, err := credentialsFromSecret(ctx, kube, namespace, spec.Secret)
		if err != nil {
			return nil, err
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, ytdlerr.WrapS3(err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if spec.Endpoint != "" {
			o.BaseEndpoint = &spec.Endpoint
			o.UsePathStyle = true
		}
	})

	key, err := ExpandKey(spec.Key, metadata)
	if err != nil {
		return nil, err
	}

	return &Resolved{Client: cli, Bucket: spec.Bucket, Key: key}, nil
}

// credentialsFromSecret reads access_key_id, secret_access_key,
// security_token and session_token from the named Secret and builds a
// static credentials provider. Missing optional fields are left unset.
//
// Both security_token and session_token are read and folded into the
// session-token argument, session_token taking precedence when both are
// present - the source's handling of the two is ambiguous (both are read
// and passed separately to the S3 client); this keeps both code paths per
// SPEC_FULL.md's Open Question decision.
func credentialsFromSecret(ctx context.Context, kube client.Reader, namespace, name string) (*credentials.StaticCredentialsProvider, error) {
	secret := &corev1.Secret{}
	if err := kube.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, secret); err != nil {
		return nil, ytdlerr.WrapKubeAPI(err)
	}

	accessKeyID := string(secret.Data["access_key_id"])
	secretAccessKey := string(secret.Data["secret_access_key"])
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, ytdlerr.MsgS3Credentials("secret %s/%s missing access_key_id or secret_access_key", namespace, name)
	}

	sessionToken := string(secret.Data["security_token"])
	if v := string(secret.Data["session_token"]); v != "" {
		sessionToken = v
	}

	provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
	return &provider, nil
}

// ExpandKey expands %(name)s tokens in tmpl against the top-level fields of
// metadata. Non-string values substitute as the empty string. If tmpl is
// empty, DefaultKeyTemplate is used. Fails with InvalidUserInput if any
// token remains unresolved, per invariant 5.
func ExpandKey(tmpl string, metadata map[string]any) (string, error) {
	if tmpl == "" {
		tmpl = DefaultKeyTemplate
	}

	expanded := tokenPattern.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := tokenPattern.FindStringSubmatch(tok)[1]
		v, ok := metadata[name]
		if !ok {
			return tok
		}
		s, ok := v.(string)
		if !ok {
			return ""
		}
		return s
	})

	if tokenPattern.MatchString(expanded) {
		return "", ytdlerr.MsgInvalidUserInput("template %q has unresolved token(s) after expansion: %q", tmpl, expanded)
	}

	return expanded, nil
}

// Exists reports whether resolved already names an object with non-zero
// content length, per section 4.F's "already done" check: a prior download
// attempt that was interrupted after upload but before status was recorded
// should not be redone.
func (r *Resolved) Exists(ctx context.Context) (bool, error) {
	out, err := r.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &r.Bucket,
		Key:    &r.Key,
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, ytdlerr.WrapS3(err)
	}
	return out.ContentLength != nil && *out.ContentLength > 0, nil
}

// MissingOutputError builds the InvalidUserInput-shaped error used when the
// controller requests a download branch for which the Download/DownloadJob
// spec has no matching output. Per section 4.E this should never happen in
// practice (the controller must not invoke the combination), so callers
// treat it as a programming error surfaced via the same error kind.
func MissingOutputError(branch string) error {
	return fmt.Errorf("missing output.%s.s3 in spec: %w", branch, ytdlerr.MsgInvalidUserInput("missing output.%s.s3", branch))
}
