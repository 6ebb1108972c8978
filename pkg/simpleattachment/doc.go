// Package simpleattachment manages attachments: files kept in an object
// store (LOCAL) or links to content hosted elsewhere (EXTERNAL), bound to the
// videos and modules that reference them.
//
// The Service keeps an attachment's type and status consistent with its
// backing storage object across create, update, delete and the asynchronous
// "object stored" notification. The Reconciler keeps the videos/modules
// back-references consistent with the reference lists broadcast by the
// services that own those elements.
//
// Repositories (memory, Postgres), storage gateways (memory, S3, MinIO) and
// event transports (Kafka) live in subpackages.
package simpleattachment
