// Package qdrant implements memory.Store on the Qdrant vector database via
// its official gRPC client. Collections are created lazily with cosine
// distance and a vector size inferred from the first upserted record. The
// record text travels in the point payload under the "text" key alongside
// user metadata.
package qdrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kernelmesh/kernelmesh/memory"
)

const textPayloadKey = "text"

// Store implements memory.Store backed by a Qdrant instance.
type Store struct {
	client *qdrant.Client
}

// Options configures the Qdrant connection.
type Options struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// New connects to a Qdrant instance. Defaults: localhost:6334, no TLS.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Host: "localhost",
		Port: 6334,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing Qdrant client.
func NewFromClient(client *qdrant.Client) *Store {
	return &Store{client: client}
}

// ensureCollection creates the collection with cosine distance if missing.
// A concurrent "already exists" failure is treated as success.
func (s *Store) ensureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

// Upsert implements memory.Store.
func (s *Store) Upsert(ctx context.Context, collection string, records ...memory.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection, uint64(len(records[0].Vector))); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		payload := make(map[string]*qdrant.Value, len(rec.Metadata)+1)
		for key, value := range rec.Metadata {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert metadata value %s: %w", key, err)
			}
			payload[key] = val
		}
		textVal, err := qdrant.NewValue(rec.Text)
		if err != nil {
			return fmt.Errorf("failed to convert record text: %w", err)
		}
		payload[textPayloadKey] = textVal

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search implements memory.Store.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]memory.Match, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return []memory.Match{}, nil
	}

	result, err := s.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make([]memory.Match, 0, len(result.Result))
	for _, point := range result.Result {
		rec := memory.Record{
			ID:     pointID(point.Id),
			Vector: pointVector(point.Vectors),
		}
		metadata := decodePayload(point.Payload)
		if text, ok := metadata[textPayloadKey].(string); ok {
			rec.Text = text
			delete(metadata, textPayloadKey)
		}
		if len(metadata) > 0 {
			rec.Metadata = metadata
		}
		matches = append(matches, memory.Match{Record: rec, Score: point.Score})
	}
	return matches, nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: id},
		})
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func pointID(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

func pointVector(vectors *qdrant.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	data := vectors.GetVector()
	if data == nil {
		return nil
	}
	if dense, ok := data.Vector.(*qdrant.VectorOutput_Dense); ok && dense.Dense != nil {
		return dense.Dense.Data
	}
	return nil
}

func decodePayload(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		metadata[key] = decodeValue(value)
	}
	return metadata
}

func decodeValue(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = decodeValue(item)
		}
		return list
	default:
		return value
	}
}
