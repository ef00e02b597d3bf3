// Package objstore provides durable object storage used for pipeline batches
// and, through store.ObjectRecords, for persisted EPD records.
//
// Every backend implements Store:
//
//   - Memory: in-process map, for tests and single-process runs
//   - Redis: one hash per object (body + metadata fields), optional TTL
//   - S3: one object per key with user metadata
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := objstore.NewRedis(redisClient, objstore.RedisOptions{})
//
//	key := objstore.JoinKey("batches/eco", uuid.NewString())
//	if err := store.Put(ctx, key, body, nil); err != nil {
//		return err
//	}
//
//	data, err := store.Get(ctx, key)
//	if errors.Is(err, objstore.ErrNotFound) {
//		// stale key
//	}
//
// # Metrics
//
//   - epd_objstore_operations_total{backend, operation, result}
//   - epd_objstore_written_bytes_total{backend}
package objstore
