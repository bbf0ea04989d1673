package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nvandessel/atnsim/internal/jobs"
)

// FormatVersion is the version written into new snapshot headers.
const FormatVersion = 1

// MaxDecompressedSize caps the decompressed payload of a snapshot (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// ErrChecksumMismatch is returned when a payload does not match the
// checksum recorded in its header.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// Header is the plain JSON first line of a snapshot file. It can be read
// without decompressing the payload.
type Header struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Checksum  string            `json:"checksum"`
	JobCount  int               `json:"job_count"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Snapshot is the payload of a snapshot file.
type Snapshot struct {
	Jobs []*jobs.Job `json:"jobs"`
}

// write stores snap at path as a header line followed by the gzipped JSON
// payload. The checksum covers the uncompressed payload.
func write(path string, snap *Snapshot, meta map[string]string) (*Header, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)
	h := &Header{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Checksum:  "sha256:" + hex.EncodeToString(sum[:]),
		JobCount:  len(snap.Jobs),
		Metadata:  meta,
	}
	line, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(line)
	buf.WriteByte('\n')
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}

	// Job data may hold unpublished field series; keep it owner-only.
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	return h, nil
}

// ReadHeader returns the header of a snapshot file.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	h, _, err := readHeader(bufio.NewReader(f))
	return h, err
}

func readHeader(r *bufio.Reader) (*Header, *bufio.Reader, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, nil, fmt.Errorf("parse snapshot header: %w", err)
	}
	if h.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	return &h, r, nil
}

// Read loads and verifies a snapshot file.
func Read(path string) (*Header, *Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	h, r, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, err
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer zr.Close()

	payload, err := io.ReadAll(io.LimitReader(zr, MaxDecompressedSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	if len(payload) > MaxDecompressedSize {
		return nil, nil, fmt.Errorf("snapshot payload exceeds %d bytes", MaxDecompressedSize)
	}

	sum := sha256.Sum256(payload)
	if "sha256:"+hex.EncodeToString(sum[:]) != h.Checksum {
		return nil, nil, ErrChecksumMismatch
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return h, &snap, nil
}
