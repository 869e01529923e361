package tenants

import (
	"errors"
	"fmt"
)

var (
	errMissingRemote     = errors.New("remote datastore is required")
	errMissingQueue      = errors.New("sync queue is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingOwnerID    = errors.New("owner identifier is required")
)

// ServiceError carries an operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew      = "tenants.store.new"
	opLoadAll       = "tenants.load_all"
	opCreate        = "tenants.create"
	opRemoteUpdate  = "tenants.remote_update"
	opRemoteDelete  = "tenants.remote_delete"
	opEnqueueMirror = "tenants.enqueue_mirror"

	reasonMissingRemote      = "missing_remote"
	reasonMissingQueue       = "missing_queue"
	reasonMissingIDProvider  = "missing_id_provider"
	reasonMissingOwnerID     = "missing_owner_id"
	reasonRemoteFetchFailed  = "remote_fetch_failed"
	reasonRemoteCreateFailed = "remote_create_failed"
	reasonReloadFailed       = "reload_failed"
	reasonIDGenerationFailed = "id_generation_failed"
	reasonRemoteSyncFailed   = "remote_sync_failed"
	reasonQueueClosed        = "queue_closed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
