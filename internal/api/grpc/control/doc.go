// Package control implements the gRPC transport for the host boundary.
//
// The UpdaterControl service exposes the current version, executable path,
// platform version and TriggerUpdateAndRelaunch. Its messages are protobuf
// well-known types, so the service descriptor and client are written by hand
// in the shape protoc-gen-go-grpc would produce.
package control
