// Package cloud mirrors documents to an object storage bucket. Every object
// lives under <prefix>/<userID>/, so tools other than cloud.status need an
// authenticated caller. Sync compares xxhash digests against a persisted
// manifest and uploads only what changed.
package cloud
