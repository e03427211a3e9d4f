package audit

import "github.com/umarmk/mcp-server/internal/errs"

var errNotArchived = errs.New(errs.ErrKindInvalidArgument, "audit archive is not configured (set AUDIT_BUCKET)")
