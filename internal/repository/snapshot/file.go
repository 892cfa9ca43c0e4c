package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sensor-node/internal/config"
	"github.com/oshokin/sensor-node/internal/domain/alarm"
)

// Snapshot is the persisted node state.
type Snapshot struct {
	// TakenAt is when the snapshot was captured.
	TakenAt time.Time
	// Sensors maps sensor names to their last values.
	Sensors map[string]float64
	// Alarms maps alarm names to their last statuses.
	Alarms map[string]alarm.Status
}

// Repository defines persistence operations for the node snapshot.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// FileRepository persists the snapshot to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the snapshot file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

const (
	keyTakenAt = "taken_at"
	keySensors = "sensors"
	keyAlarms  = "alarms"
)

var (
	// ErrNotFound is returned when the snapshot file does not exist yet.
	ErrNotFound = errors.New("snapshot not found")
	// ErrMalformed is returned when the file is valid JSON but not a snapshot.
	ErrMalformed = errors.New("malformed snapshot")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	return fromProto(&doc)
}

// Save writes the snapshot to disk.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", ErrMalformed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toProto(snapshot)
	if err != nil {
		return err
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	return nil
}

// fromProto converts the stored document into a Snapshot.
func fromProto(doc *structpb.Struct) (*Snapshot, error) {
	fields := doc.GetFields()

	result := &Snapshot{
		Sensors: make(map[string]float64),
		Alarms:  make(map[string]alarm.Status),
	}

	if raw := fields[keyTakenAt].GetStringValue(); raw != "" {
		takenAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, keyTakenAt, err)
		}

		result.TakenAt = takenAt
	}

	for name, value := range fields[keySensors].GetStructValue().GetFields() {
		if _, ok := value.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("%w: sensor %s is not a number", ErrMalformed, name)
		}

		result.Sensors[name] = value.GetNumberValue()
	}

	for name, value := range fields[keyAlarms].GetStructValue().GetFields() {
		if _, ok := value.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("%w: alarm %s is not a number", ErrMalformed, name)
		}

		result.Alarms[name] = alarm.StatusOf(value.GetNumberValue() != 0)
	}

	return result, nil
}

// toProto converts a Snapshot into a protobuf Struct.
func toProto(snapshot *Snapshot) (*structpb.Struct, error) {
	sensors := make(map[string]any, len(snapshot.Sensors))
	for name, value := range snapshot.Sensors {
		sensors[name] = value
	}

	alarms := make(map[string]any, len(snapshot.Alarms))
	for name, status := range snapshot.Alarms {
		alarms[name] = int(status)
	}

	fields := map[string]any{
		keySensors: sensors,
		keyAlarms:  alarms,
	}

	if !snapshot.TakenAt.IsZero() {
		fields[keyTakenAt] = snapshot.TakenAt.UTC().Format(time.RFC3339Nano)
	}

	doc, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build snapshot document: %w", err)
	}

	return doc, nil
}
