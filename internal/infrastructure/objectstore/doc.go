// Package objectstore abstracts the bucket that cloud mirroring writes to.
// S3 talks to any S3-compatible service through aws-sdk-go-v2; Memory keeps
// objects in process for tests and local runs.
package objectstore
