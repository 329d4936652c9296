// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package keygen

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"

	"github.com/iofinnet/mpi-rsa/common"
	"github.com/iofinnet/mpi-rsa/crypto/rsa"
	"github.com/iofinnet/mpi-rsa/tss"
)

// Owner names a key holder.
type Owner string

const (
	Alice Owner = "alice"
	Bob   Owner = "bob"

	keyFileSuffix = ".txt"
	taskSaveKey   = "save-key"
	taskLoadKey   = "load-key"
)

var ErrUnknownOwner = errors.New("unknown key owner")

type keyField struct {
	name     string
	optional bool
	get      func(*rsa.PrivateKey) *big.Int
	set      func(*rsa.PrivateKey, *big.Int)
}

var (
	compN = keyField{"n", false, func(k *rsa.PrivateKey) *big.Int { return k.N }, func(k *rsa.PrivateKey, v *big.Int) { k.N = v }}
	compE = keyField{"e", false, func(k *rsa.PrivateKey) *big.Int { return k.E }, func(k *rsa.PrivateKey, v *big.Int) { k.E = v }}
	compD = keyField{"d", false, func(k *rsa.PrivateKey) *big.Int { return k.D }, func(k *rsa.PrivateKey, v *big.Int) { k.D = v }}

	ownerFields = map[Owner][]keyField{
		Alice: {
			compN, compE, compD,
			{"p", false, func(k *rsa.PrivateKey) *big.Int { return k.P }, func(k *rsa.PrivateKey, v *big.Int) { k.P = v }},
			{"q", false, func(k *rsa.PrivateKey) *big.Int { return k.Q }, func(k *rsa.PrivateKey, v *big.Int) { k.Q = v }},
			{"dp", false, func(k *rsa.PrivateKey) *big.Int { return k.DP }, func(k *rsa.PrivateKey, v *big.Int) { k.DP = v }},
			{"dq", false, func(k *rsa.PrivateKey) *big.Int { return k.DQ }, func(k *rsa.PrivateKey, v *big.Int) { k.DQ = v }},
			{"qInv", false, func(k *rsa.PrivateKey) *big.Int { return k.QInv }, func(k *rsa.PrivateKey, v *big.Int) { k.QInv = v }},
		},
		// bob_d may be missing; such a key can only encrypt
		Bob: {compN, compE, {"d", true, compD.get, compD.set}},
	}
)

// FileName is the object name of one key component, e.g. alice_qInv.txt.
func FileName(owner Owner, field string) string {
	return string(owner) + "_" + field + keyFileSuffix
}

// Fields lists the component names stored for owner.
func (o Owner) Fields() []string {
	fs := ownerFields[o]
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.name
	}
	return names
}

// KeyStore persists key components as one decimal text object per field.
type KeyStore interface {
	Save(ctx context.Context, owner Owner, key *rsa.PrivateKey) error
	Load(ctx context.Context, owner Owner) (*rsa.PrivateKey, error)
}

type objectStore interface {
	put(ctx context.Context, name string, data []byte) error
	get(ctx context.Context, name string) ([]byte, error)
	isNotFound(err error) bool
}

func ioErr(task string, err error) error {
	return tss.NewError(tss.IOError, err, task, -1)
}

func saveKey(ctx context.Context, s objectStore, owner Owner, key *rsa.PrivateKey) error {
	fields, ok := ownerFields[owner]
	if !ok {
		return tss.NewError(tss.InputError, errors.Wrapf(ErrUnknownOwner, "%q", owner), taskSaveKey, -1)
	}
	if key == nil {
		return tss.Errorf(tss.InputError, taskSaveKey, -1, "nil key for %s", owner)
	}
	for _, f := range fields {
		v := f.get(key)
		if v == nil {
			if f.optional {
				continue
			}
			return tss.Errorf(tss.InputError, taskSaveKey, -1, "key for %s lacks component %s", owner, f.name)
		}
		name := FileName(owner, f.name)
		if err := s.put(ctx, name, []byte(v.Text(10))); err != nil {
			return ioErr(taskSaveKey, errors.Wrapf(err, "write %s", name))
		}
	}
	common.Logger.Debugf("saved %d key components for %s", len(fields), owner)
	return nil
}

func loadKey(ctx context.Context, s objectStore, owner Owner) (*rsa.PrivateKey, error) {
	fields, ok := ownerFields[owner]
	if !ok {
		return nil, tss.NewError(tss.InputError, errors.Wrapf(ErrUnknownOwner, "%q", owner), taskLoadKey, -1)
	}
	values := make([]*big.Int, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		i, f := i, f
		g.Go(func() error {
			name := FileName(owner, f.name)
			data, err := s.get(gctx, name)
			if err != nil {
				if f.optional && s.isNotFound(err) {
					return nil
				}
				return errors.Wrapf(err, "read %s", name)
			}
			text := strings.TrimSpace(string(data))
			if text == "" && f.optional {
				return nil
			}
			v, ok := new(big.Int).SetString(text, 10)
			if !ok {
				return errors.Errorf("%s: malformed decimal integer", name)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ioErr(taskLoadKey, err)
	}
	key := new(rsa.PrivateKey)
	for i, f := range fields {
		f.set(key, values[i])
	}
	if err := key.Validate(); err != nil {
		return nil, tss.NewError(tss.InputError, errors.Wrapf(err, "stored key of %s", owner), taskLoadKey, -1)
	}
	if key.D == nil {
		common.Logger.Warnf("no private exponent stored for %s; the key can only encrypt", owner)
	}
	return key, nil
}

// ----- //

// FileKeyStore keeps key files in a local directory. Each file is written to <name>.tmp first
// and renamed into place.
type FileKeyStore struct {
	dir string
}

var _ KeyStore = (*FileKeyStore)(nil)

func NewFileKeyStore(dir string) *FileKeyStore {
	if dir == "" {
		dir = "."
	}
	return &FileKeyStore{dir: dir}
}

func (s *FileKeyStore) Dir() string { return s.dir }

func (s *FileKeyStore) Save(ctx context.Context, owner Owner, key *rsa.PrivateKey) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return ioErr(taskSaveKey, errors.Wrapf(err, "create key directory %s", s.dir))
	}
	return saveKey(ctx, s, owner, key)
}

func (s *FileKeyStore) Load(ctx context.Context, owner Owner) (*rsa.PrivateKey, error) {
	return loadKey(ctx, s, owner)
}

func (s *FileKeyStore) put(_ context.Context, name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FileKeyStore) get(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}

func (s *FileKeyStore) isNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// ----- //

// BlobKeyStore keeps key files in a gocloud bucket (file://, mem://, or any registered driver).
type BlobKeyStore struct {
	bucket *blob.Bucket
}

var _ KeyStore = (*BlobKeyStore)(nil)

// OpenBlobKeyStore opens the bucket at url. Close releases it.
func OpenBlobKeyStore(ctx context.Context, url string) (*BlobKeyStore, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, ioErr("open-key-bucket", errors.Wrapf(err, "open bucket %s", url))
	}
	return NewBlobKeyStore(bucket), nil
}

// NewBlobKeyStore wraps an already open bucket; Close closes it.
func NewBlobKeyStore(bucket *blob.Bucket) *BlobKeyStore {
	return &BlobKeyStore{bucket: bucket}
}

func (s *BlobKeyStore) Save(ctx context.Context, owner Owner, key *rsa.PrivateKey) error {
	return saveKey(ctx, s, owner, key)
}

func (s *BlobKeyStore) Load(ctx context.Context, owner Owner) (*rsa.PrivateKey, error) {
	return loadKey(ctx, s, owner)
}

func (s *BlobKeyStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

// put relies on the bucket writer committing the object only on a successful close.
func (s *BlobKeyStore) put(ctx context.Context, name string, data []byte) error {
	return s.bucket.WriteAll(ctx, name, data, nil)
}

func (s *BlobKeyStore) get(ctx context.Context, name string) ([]byte, error) {
	return s.bucket.ReadAll(ctx, name)
}

func (s *BlobKeyStore) isNotFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}

// ----- //

// OpenKeyStore picks a store for location: URLs with a scheme go to a bucket, anything else is a directory.
func OpenKeyStore(ctx context.Context, location string) (KeyStore, func() error, error) {
	if strings.Contains(location, "://") {
		s, err := OpenBlobKeyStore(ctx, location)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return NewFileKeyStore(location), func() error { return nil }, nil
}
