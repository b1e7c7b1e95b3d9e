// Package store keeps generated bit streams and their reports in a bbolt
// database, one bucket per run.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.etcd.io/bbolt"

	"github.com/safing/mibis/formats/dsd"
)

var (
	runsBucket   = []byte("runs")
	chunksBucket = []byte("chunks")
	reportKey    = []byte("report")

	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("run not found")
)

// Store is a bbolt database holding runs.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Create bucket
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db: db,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Runs returns the ids of all stored runs.
func (s *Store) Runs() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			id, err := uuid.FromBytes(k)
			if err != nil {
				return fmt.Errorf("invalid run key %x: %w", k, err)
			}
			ids = append(ids, id)
			return nil
		})
	})
	return ids, err
}

// SaveReport stores the report of a run as dsd formatted data.
func (s *Store) SaveReport(id uuid.UUID, report interface{}, format dsd.SerializationFormat) error {
	data, err := dsd.Dump(report, format)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		run, err := tx.Bucket(runsBucket).CreateBucketIfNotExists(id.Bytes())
		if err != nil {
			return err
		}
		return run.Put(reportKey, data)
	})
}

// LoadReport loads the report of a run into report.
func (s *Store) LoadReport(id uuid.UUID, report interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		run := tx.Bucket(runsBucket).Bucket(id.Bytes())
		if run == nil {
			return ErrNotFound
		}
		data := run.Get(reportKey)
		if data == nil {
			return fmt.Errorf("%w: run %s has no report", ErrNotFound, id)
		}

		// data is only valid within the transaction
		_, err := dsd.Load(bytes.Clone(data), report)
		return err
	})
}

// ReadPacked returns the packed output of a run.
func (s *Store) ReadPacked(id uuid.UUID) (packed []byte, bits uint64, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		run := tx.Bucket(runsBucket).Bucket(id.Bytes())
		if run == nil {
			return ErrNotFound
		}
		chunks := run.Bucket(chunksBucket)
		if chunks == nil {
			return nil
		}

		return chunks.ForEach(func(k, v []byte) error {
			if len(v) < 8 {
				return fmt.Errorf("invalid chunk %x", k)
			}
			// chunks before the last one always hold full bytes
			bits += binary.BigEndian.Uint64(v[:8])
			packed = append(packed, v[8:]...)
			return nil
		})
	})
	return packed, bits, err
}

// Delete deletes a run.
func (s *Store) Delete(id uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(runsBucket).DeleteBucket(id.Bytes())
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return ErrNotFound
		}
		return err
	})
}

func (s *Store) putChunk(id uuid.UUID, bits uint64, packed []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		run, err := tx.Bucket(runsBucket).CreateBucketIfNotExists(id.Bytes())
		if err != nil {
			return err
		}
		chunks, err := run.CreateBucketIfNotExists(chunksBucket)
		if err != nil {
			return err
		}

		seq, err := chunks.NextSequence()
		if err != nil {
			return err
		}
		key := binary.BigEndian.AppendUint64(nil, seq)
		value := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(packed)), bits)
		return chunks.Put(key, append(value, packed...))
	})
}
