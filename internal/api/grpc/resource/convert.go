package resource

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sensor-node/internal/observe"
	domain "github.com/oshokin/sensor-node/internal/resource"
)

// Link describes a registered resource.
type Link struct {
	Name       string
	Path       string
	Title      string
	Observable bool
}

// Representation is one rendered resource read as carried on the wire.
type Representation struct {
	Name        string
	Path        string
	Payload     string
	ContentType string
	MaxAge      time.Duration
	Truncated   bool
	Sequence    uint64
	At          time.Time
}

// Struct field names.
const (
	fieldName        = "name"
	fieldPath        = "path"
	fieldTitle       = "title"
	fieldObservable  = "observable"
	fieldPayload     = "payload"
	fieldContentType = "content_type"
	fieldMaxAge      = "max_age_seconds"
	fieldTruncated   = "truncated"
	fieldSequence    = "sequence"
	fieldAt          = "at"
)

// errMalformed is returned when a Struct lacks a required field.
var errMalformed = errors.New("malformed message")

// FromNotification converts a hub notification into a Representation.
func FromNotification(n observe.Notification) Representation {
	return Representation{
		Name:        n.Name,
		Path:        n.Path,
		Payload:     string(n.Response.Payload),
		ContentType: n.Response.ContentType,
		MaxAge:      n.Response.MaxAge,
		Truncated:   n.Response.Truncated,
		Sequence:    n.Sequence,
		At:          n.At,
	}
}

// ToStruct encodes a representation.
func ToStruct(r Representation) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldName:        structpb.NewStringValue(r.Name),
		fieldPath:        structpb.NewStringValue(r.Path),
		fieldPayload:     structpb.NewStringValue(r.Payload),
		fieldContentType: structpb.NewStringValue(r.ContentType),
		fieldMaxAge:      structpb.NewNumberValue(r.MaxAge.Seconds()),
		fieldTruncated:   structpb.NewBoolValue(r.Truncated),
		fieldSequence:    structpb.NewNumberValue(float64(r.Sequence)),
	}

	if !r.At.IsZero() {
		fields[fieldAt] = structpb.NewStringValue(r.At.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// FromStruct decodes a representation.
func FromStruct(s *structpb.Struct) (Representation, error) {
	fields := s.GetFields()

	name := fields[fieldName].GetStringValue()
	if name == "" {
		return Representation{}, fmt.Errorf("%w: %s is missing", errMalformed, fieldName)
	}

	r := Representation{
		Name:        name,
		Path:        fields[fieldPath].GetStringValue(),
		Payload:     fields[fieldPayload].GetStringValue(),
		ContentType: fields[fieldContentType].GetStringValue(),
		MaxAge:      time.Duration(fields[fieldMaxAge].GetNumberValue() * float64(time.Second)),
		Truncated:   fields[fieldTruncated].GetBoolValue(),
		Sequence:    uint64(fields[fieldSequence].GetNumberValue()),
	}

	if raw := fields[fieldAt].GetStringValue(); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Representation{}, fmt.Errorf("%w: %s: %w", errMalformed, fieldAt, err)
		}

		r.At = at
	}

	return r, nil
}

// LinkOf describes a registered resource.
func LinkOf(res domain.Resource, path string) Link {
	return Link{
		Name:       res.Name(),
		Path:       path,
		Title:      res.Title(),
		Observable: res.Observable(),
	}
}

// ToListValue encodes resource links.
func ToListValue(links []Link) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(links))

	for _, link := range links {
		values = append(values, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				fieldName:       structpb.NewStringValue(link.Name),
				fieldPath:       structpb.NewStringValue(link.Path),
				fieldTitle:      structpb.NewStringValue(link.Title),
				fieldObservable: structpb.NewBoolValue(link.Observable),
			},
		}))
	}

	return &structpb.ListValue{Values: values}
}

// FromListValue decodes resource links.
func FromListValue(list *structpb.ListValue) ([]Link, error) {
	links := make([]Link, 0, len(list.GetValues()))

	for i, value := range list.GetValues() {
		fields := value.GetStructValue().GetFields()

		name := fields[fieldName].GetStringValue()
		if name == "" {
			return nil, fmt.Errorf("%w: link %d has no %s", errMalformed, i, fieldName)
		}

		links = append(links, Link{
			Name:       name,
			Path:       fields[fieldPath].GetStringValue(),
			Title:      fields[fieldTitle].GetStringValue(),
			Observable: fields[fieldObservable].GetBoolValue(),
		})
	}

	return links, nil
}
