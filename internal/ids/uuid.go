package ids

import "github.com/google/uuid"

// NewUUID returns a new random UUID string, used for request ids,
// session ids, and hook invocation ids where Snowflake's
// time-orderedness isn't needed.
func NewUUID() string {
	return uuid.NewString()
}

// NewOperationID mirrors original_source's `op_{uuid}` server_id
// convention for operation messages (recall/edit/delete/...).
func NewOperationID() string {
	return "op_" + uuid.NewString()
}
