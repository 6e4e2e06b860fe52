package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads.  Swipe and heartbeat messages are a few hundred bytes, so
// 4 KiB is generous.
const maxRequestBody = 4096

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.  Reader firmware sends "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-protobuf" ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// decodeBody fills v from a JSON body, or from a protobuf-encoded
// google.protobuf.Struct whose fields carry the JSON names.
func decodeBody(r *http.Request, v any) error {
	if isProtobuf(r) {
		var st structpb.Struct
		if err := readProto(r, &st); err != nil {
			return fmt.Errorf("decode protobuf: %w", err)
		}
		return types.FromStruct(&st, v)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respond answers in the request's encoding.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if isProtobuf(r) {
		st, err := types.ToStruct(v)
		if err != nil {
			http.Error(w, "proto marshal error", http.StatusInternalServerError)
			return
		}
		writeProto(w, status, st)
		return
	}
	writeJSON(w, status, v)
}
