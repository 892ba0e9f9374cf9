package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nidhogg/noema/internal/embedding"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantConfig holds connection settings for a Qdrant instance.
type QdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Collection string `json:"collection"`
}

// QdrantIndex is an Index backed by a Qdrant server over gRPC.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
	embedder    embedding.Provider
	logger      *zap.Logger
}

// NewQdrantIndex dials the Qdrant gRPC endpoint and ensures the collection
// exists with the embedder's dimension.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, embedder embedding.Provider, logger *zap.Logger) (*QdrantIndex, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	idx := &QdrantIndex{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  cfg.Collection,
		embedder:    embedder,
		logger:      logger,
	}
	if err := idx.ensureCollection(ctx, uint64(embedder.Dimension())); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the collection if it does not already exist.
func (q *QdrantIndex) ensureCollection(ctx context.Context, dimension uint64) error {
	_, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collection})
	if err == nil {
		return nil
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

// Add embeds text and upserts it as a point with text + metadata payload.
func (q *QdrantIndex) Add(ctx context.Context, text string, meta map[string]string) (string, error) {
	vector, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("index add: %w", err)
	}

	id := uuid.New().String()
	payload := map[string]*pb.Value{
		"text": {Kind: &pb.Value_StringValue{StringValue: text}},
	}
	for k, v := range meta {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}

	_, err = q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("upsert %s: %w", q.collection, err)
	}
	return id, nil
}

// Search embeds the query and returns the top-k nearest points.
func (q *QdrantIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.collection, err)
	}

	results := make([]Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		res := Result{
			ID:    r.Id.GetUuid(),
			Score: r.Score,
			Meta:  make(map[string]string),
		}
		for key, v := range r.Payload {
			sv, ok := v.Kind.(*pb.Value_StringValue)
			if !ok {
				continue
			}
			if key == "text" {
				res.Text = sv.StringValue
			} else {
				res.Meta[key] = sv.StringValue
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// Close tears down the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}
