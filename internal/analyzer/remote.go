package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-detect/internal/layer"
)

// DefaultScoreMethod is the full gRPC method name of the external layer scorer.
const DefaultScoreMethod = "/plagiarism.v1.LayerAnalyzer/Score"

// #region remote-struct
// Remote calls an external layer-scoring service over gRPC. Messages are
// google.protobuf.Struct so the service contract needs no generated stubs:
//
//	request:  {submission_text, submission_language, doc_id, doc_text, doc_language}
//	response: {scores: {semantic: 0-100, stylometry: 0-100, ...}}
type Remote struct {
	conn    grpc.ClientConnInterface
	closer  interface{ Close() error }
	method  string
	timeout time.Duration
}

// #endregion remote-struct

// #region constructor
// NewRemote connects to the analyzer service at addr.
func NewRemote(addr string, timeout time.Duration) (*Remote, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Remote{conn: conn, closer: conn, method: DefaultScoreMethod, timeout: timeout}, nil
}

// NewRemoteWithConn creates a Remote over an injected connection.
// Used for testing without a real gRPC server.
func NewRemoteWithConn(conn grpc.ClientConnInterface, timeout time.Duration) *Remote {
	return &Remote{conn: conn, method: DefaultScoreMethod, timeout: timeout}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (r *Remote) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// #endregion close

// #region score
// Score implements Analyzer.
func (r *Remote) Score(ctx context.Context, sub Submission, doc Document) ([]layer.Score, error) {
	req, err := structpb.NewStruct(map[string]any{
		"submission_text":     sub.Text,
		"submission_language": sub.Language,
		"doc_id":              doc.DocID,
		"doc_text":            doc.Text,
		"doc_language":        doc.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("encode score request: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, r.method, req, resp); err != nil {
		return nil, fmt.Errorf("score rpc %s: %w", doc.DocID, err)
	}
	return decodeScores(resp)
}

func decodeScores(resp *structpb.Struct) ([]layer.Score, error) {
	field, ok := resp.GetFields()["scores"]
	if !ok {
		return nil, fmt.Errorf("score response missing scores")
	}
	obj := field.GetStructValue()
	if obj == nil {
		return nil, fmt.Errorf("score response: scores is not an object")
	}

	out := make([]layer.Score, 0, len(obj.GetFields()))
	for name, v := range obj.GetFields() {
		l, err := layer.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("score response: %w", err)
		}
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("score response: %s is not a number", name)
		}
		out = append(out, layer.Score{Layer: l, Value: v.GetNumberValue()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Layer.Index() < out[j].Layer.Index() })
	return out, nil
}

// #endregion score
