// Package historyv1 defines the wire API of the history service.
//
// Messages travel as google.protobuf.Struct over gRPC and as plain JSON over
// HTTP; both carry the JSON encoding of the types in this package. 64-bit
// timestamps are encoded as decimal strings so they survive JSON number
// precision.
//
// The gRPC service is tablehistory.v1.HistoryService. RegisterHistoryServiceServer
// and NewHistoryServiceClient mirror what protoc-gen-go-grpc would emit.
package historyv1
