// Package s3 implements the hierarchical storage Store over an
// S3-compatible backend (AWS S3 or MinIO). Collections map to key
// prefixes and data objects to object keys. Annotation state (AVUs and
// access grants) is kept in per-node sidecar documents under a shadow
// prefix, read-modify-written on every upsert; the backend's own object
// data is never touched.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"seqprov/internal/storage/core"
)

// shadowPrefix is where sidecar annotation documents live inside the
// bucket, out of the way of instrument output keys.
const shadowPrefix = ".seqprov/"

// Store implements core.Store using an S3-compatible backend.
// Minimal surface area: single bucket. Node paths map to object keys
// directly after stripping the leading slash.
type Store struct {
	client *s3.Client
	bucket string
}

// Config holds explicit construction parameters (mostly for tests). For
// prod we rely primarily on environment variables.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
}

// Environment variables:
//   SEQPROV_STORAGE_DRIVER=s3
//   SEQPROV_STORAGE_S3_BUCKET=<bucket> (required)
//   SEQPROV_STORAGE_S3_REGION=<region> (default us-east-1)
//   SEQPROV_STORAGE_S3_ENDPOINT=<url> (optional, for MinIO)
//   SEQPROV_STORAGE_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3-backed store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// OpenFromEnv constructs an S3 store from process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("SEQPROV_STORAGE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("SEQPROV_STORAGE_S3_BUCKET required for s3 driver")
	}
	cfg := Config{
		Bucket:    bucket,
		Region:    os.Getenv("SEQPROV_STORAGE_S3_REGION"),
		Endpoint:  os.Getenv("SEQPROV_STORAGE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("SEQPROV_STORAGE_S3_PATH_STYLE"), "true"),
	}
	return New(ctx, cfg)
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// nodeState is the sidecar document holding a node's annotation state.
type nodeState struct {
	AVUs []core.AVU `json:"avus,omitempty"`
	ACL  []core.AC  `json:"acl,omitempty"`
}

func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func shadowKey(p string) string {
	return shadowPrefix + objectKey(p) + ".json"
}

// Stat resolves a node: a data object if the key exists, otherwise a
// collection if any key or sidecar lives beneath the path.
func (s *Store) Stat(ctx context.Context, p string) (core.Info, error) {
	key := objectKey(p)
	cleaned := "/" + key
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err == nil {
		return core.Info{Path: cleaned, Collection: false}, nil
	}
	if !isNotFound(err) {
		return core.Info{}, wrapErr("stat", cleaned, err)
	}
	for _, prefix := range []string{key + "/", shadowPrefix + key + "/", shadowKey(p)} {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  &s.bucket,
			Prefix:  &prefix,
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return core.Info{}, wrapErr("stat", cleaned, err)
		}
		if len(out.Contents) > 0 {
			return core.Info{Path: cleaned, Collection: true}, nil
		}
	}
	return core.Info{}, fmt.Errorf("stat %s: %w", cleaned, core.ErrNotFound)
}

// Metadata returns the node's AVUs ordered by (namespace, attribute).
func (s *Store) Metadata(ctx context.Context, p string) ([]core.AVU, error) {
	if _, err := s.Stat(ctx, p); err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, p)
	if err != nil {
		return nil, err
	}
	avus := append([]core.AVU(nil), state.AVUs...)
	sort.Slice(avus, func(i, j int) bool {
		if avus[i].Namespace != avus[j].Namespace {
			return avus[i].Namespace < avus[j].Namespace
		}
		return avus[i].Attr < avus[j].Attr
	})
	return avus, nil
}

// UpsertMetadata merges AVUs into the node's sidecar keyed by
// (namespace, attribute).
func (s *Store) UpsertMetadata(ctx context.Context, p string, avus ...core.AVU) error {
	if _, err := s.Stat(ctx, p); err != nil {
		return err
	}
	state, err := s.loadState(ctx, p)
	if err != nil {
		return err
	}
	merged := make(map[core.AVUKey]string, len(state.AVUs)+len(avus))
	for _, avu := range state.AVUs {
		merged[avu.Key()] = avu.Value
	}
	for _, avu := range avus {
		merged[avu.Key()] = avu.Value
	}
	state.AVUs = state.AVUs[:0]
	for k, v := range merged {
		state.AVUs = append(state.AVUs, core.AVU{Namespace: k.Namespace, Attr: k.Attr, Value: v})
	}
	sort.Slice(state.AVUs, func(i, j int) bool {
		if state.AVUs[i].Namespace != state.AVUs[j].Namespace {
			return state.AVUs[i].Namespace < state.AVUs[j].Namespace
		}
		return state.AVUs[i].Attr < state.AVUs[j].Attr
	})
	return s.saveState(ctx, p, state)
}

// ACL returns the node's grants ordered by principal.
func (s *Store) ACL(ctx context.Context, p string) ([]core.AC, error) {
	if _, err := s.Stat(ctx, p); err != nil {
		return nil, err
	}
	state, err := s.loadState(ctx, p)
	if err != nil {
		return nil, err
	}
	acl := append([]core.AC(nil), state.ACL...)
	sort.Slice(acl, func(i, j int) bool { return acl[i].Principal < acl[j].Principal })
	return acl, nil
}

// UpsertPermissions merges grants into the node's sidecar keyed by
// principal, and with recurse set, into every descendant's sidecar.
func (s *Store) UpsertPermissions(ctx context.Context, p string, recurse bool, acs ...core.AC) error {
	if _, err := s.Stat(ctx, p); err != nil {
		return err
	}
	if err := s.mergeACL(ctx, p, acs); err != nil {
		return err
	}
	if !recurse {
		return nil
	}
	descendants, err := s.descendantPaths(ctx, p)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if err := s.mergeACL(ctx, d, acs); err != nil {
			return err
		}
	}
	return nil
}

// List returns the immediate children of a collection ordered by path.
func (s *Store) List(ctx context.Context, p string) ([]core.Info, error) {
	info, err := s.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !info.Collection {
		return nil, fmt.Errorf("list %s: not a collection", info.Path)
	}
	prefix := objectKey(p) + "/"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    &prefix,
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, wrapErr("list", info.Path, err)
	}
	var infos []core.Info
	for _, cp := range out.CommonPrefixes {
		infos = append(infos, core.Info{Path: "/" + strings.TrimSuffix(aws.ToString(cp.Prefix), "/"), Collection: true})
	}
	for _, obj := range out.Contents {
		infos = append(infos, core.Info{Path: "/" + aws.ToString(obj.Key), Collection: false})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (s *Store) mergeACL(ctx context.Context, p string, acs []core.AC) error {
	state, err := s.loadState(ctx, p)
	if err != nil {
		return err
	}
	merged := make(map[string]core.Permission, len(state.ACL)+len(acs))
	for _, ac := range state.ACL {
		merged[ac.Principal] = ac.Perm
	}
	for _, ac := range acs {
		merged[ac.Principal] = ac.Perm
	}
	state.ACL = state.ACL[:0]
	for principal, perm := range merged {
		state.ACL = append(state.ACL, core.AC{Principal: principal, Perm: perm})
	}
	sort.Slice(state.ACL, func(i, j int) bool { return state.ACL[i].Principal < state.ACL[j].Principal })
	return s.saveState(ctx, p, state)
}

// descendantPaths enumerates every node beneath p: real object keys plus
// paths that exist only as annotated sidecars (barcode sub-collections
// annotated before any read has produced files).
func (s *Store) descendantPaths(ctx context.Context, p string) ([]string, error) {
	seen := map[string]struct{}{}
	collect := func(prefix string, trim func(string) (string, bool)) error {
		var token *string
		for {
			out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            &s.bucket,
				Prefix:            &prefix,
				ContinuationToken: token,
			})
			if err != nil {
				return wrapErr("list descendants of", p, err)
			}
			for _, obj := range out.Contents {
				if d, ok := trim(aws.ToString(obj.Key)); ok {
					seen[d] = struct{}{}
				}
			}
			if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
				token = out.NextContinuationToken
				continue
			}
			break
		}
		return nil
	}
	key := objectKey(p)
	if err := collect(key+"/", func(k string) (string, bool) {
		return "/" + k, true
	}); err != nil {
		return nil, err
	}
	if err := collect(shadowPrefix+key+"/", func(k string) (string, bool) {
		k = strings.TrimPrefix(k, shadowPrefix)
		k = strings.TrimSuffix(k, ".json")
		return "/" + k, true
	}); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) loadState(ctx context.Context, p string) (nodeState, error) {
	key := shadowKey(p)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nodeState{}, nil
		}
		return nodeState{}, wrapErr("load annotation state", p, err)
	}
	defer func() { _ = out.Body.Close() }()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nodeState{}, fmt.Errorf("read annotation state %s: %w", p, err)
	}
	var state nodeState
	if err := json.Unmarshal(b, &state); err != nil {
		return nodeState{}, fmt.Errorf("decode annotation state %s: %w", p, err)
	}
	return state, nil
}

func (s *Store) saveState(ctx context.Context, p string, state nodeState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode annotation state %s: %w", p, err)
	}
	key := shadowKey(p)
	contentType := "application/json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: &contentType,
	})
	if err != nil {
		return wrapErr("save annotation state", p, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// isUnavailable reports whether the request never reached the backend:
// the SDK wraps dial and send failures in a RequestSendError.
func isUnavailable(err error) bool {
	var sendErr *smithyhttp.RequestSendError
	return errors.As(err, &sendErr)
}

// wrapErr wraps a backend failure, mapping connectivity problems to
// core.ErrUnavailable so callers can tell a dead backend from a data
// error.
func wrapErr(op, p string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s %s: %w (%v)", op, p, core.ErrUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}

// Compile-time contract assertion.
var _ core.Store = (*Store)(nil)
