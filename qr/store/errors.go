package store

import "errors"

var (
	// ErrBatchEmpty is returned when Exec is invoked with a nil or empty batch.
	ErrBatchEmpty = errors.New("batch is empty")
	// ErrBoltDBBucketCreateFailed indicates creating a BoltDB bucket failed.
	ErrBoltDBBucketCreateFailed = errors.New("bolt bucket create failed")
	// ErrBucketNotFound is returned when the collections bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrClosed is returned when an operation runs against a closed store,
	// including blocking pops woken up by Close().
	ErrClosed = errors.New("store is closed")
	// ErrConfigInvalid indicates the store configuration has invalid values.
	ErrConfigInvalid = errors.New("invalid store configuration")
	// ErrDiskDirectoryCreateFailed indicates disk directory creation failed.
	ErrDiskDirectoryCreateFailed = errors.New("disk directory create failed")
	// ErrDiskPathIsDirectory is returned when the disk path points at a directory.
	ErrDiskPathIsDirectory = errors.New("disk path is a directory")
	// ErrDiskPathResolveFailed indicates disk path resolution failed.
	ErrDiskPathResolveFailed = errors.New("disk path resolve failed")
	// ErrDiskStoreOpenFailed indicates opening the bbolt file failed.
	ErrDiskStoreOpenFailed = errors.New("disk store open failed")
	// ErrInvalidKey is returned for empty keys, oversized keys and keys containing NUL.
	ErrInvalidKey = errors.New("invalid collection key")
	// ErrInvalidScore is returned when a sorted-set member carries a NaN score.
	ErrInvalidScore = errors.New("invalid score")
	// ErrMetaDecodeFailed indicates stored collection metadata could not be decoded.
	ErrMetaDecodeFailed = errors.New("collection metadata decode failed")
	// ErrPebbleStoreOpenFailed indicates opening the pebble directory failed.
	ErrPebbleStoreOpenFailed = errors.New("pebble store open failed")
	// ErrRedisConnectFailed indicates the Redis server could not be reached on Open().
	ErrRedisConnectFailed = errors.New("redis connect failed")
	// ErrStoreReadFailed indicates a read against the backend failed.
	ErrStoreReadFailed = errors.New("store read failed")
	// ErrStoreWriteFailed indicates a write against the backend failed.
	ErrStoreWriteFailed = errors.New("store write failed")
	// ErrUnknownBackend is returned by New for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrUnknownOp is returned when a batch carries an operation kind the backend cannot run.
	ErrUnknownOp = errors.New("unknown batch operation")
	// ErrWrongType is returned when a list operation targets a sorted set or vice versa.
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")
)
