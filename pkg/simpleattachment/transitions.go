package simpleattachment

import "fmt"

// updatePlan lists the storage side effects of an update.
type updatePlan struct {
	issueWriteURL bool
	// staleKey is the object to delete once the update is persisted.
	staleKey string
}

// applyUpdate computes the state reached by applying req to current.
//
//	LOCAL    -> EXTERNAL  needs url, drops extension, deletes the old object
//	EXTERNAL -> LOCAL     needs extension, drops url, issues a write URL
//	LOCAL    + extension  deletes the old object, issues a write URL
//
// current is never modified.
func applyUpdate(current *Attachment, req UpdateAttachmentRequest) (*Attachment, updatePlan, error) {
	var plan updatePlan
	next := current.Clone()
	next.UploadURL = ""

	target := current.Type
	if req.Type != nil {
		if !req.Type.IsValid() {
			return nil, plan, fmt.Errorf("%w: %q", ErrInvalidType, *req.Type)
		}
		target = *req.Type
	}

	switch {
	case current.Type == AttachmentTypeExternal && target == AttachmentTypeLocal:
		extension := deref(req.Extension)
		if extension == "" {
			return nil, plan, ErrMissingExtension
		}
		next.Type = AttachmentTypeLocal
		next.Extension = extension
		next.URL = ""
		next.Status = AttachmentStatusInProgress
		plan.issueWriteURL = true

	case current.Type == AttachmentTypeLocal && target == AttachmentTypeExternal:
		url := deref(req.URL)
		if url == "" {
			return nil, plan, ErrMissingURL
		}
		next.Type = AttachmentTypeExternal
		next.URL = url
		next.Extension = ""
		next.Status = AttachmentStatusCompleted
		plan.staleKey = current.ObjectKey()

	case current.Type == AttachmentTypeLocal && deref(req.Extension) != "":
		next.Extension = *req.Extension
		next.Status = AttachmentStatusInProgress
		plan.staleKey = current.ObjectKey()
		plan.issueWriteURL = true

	case current.Type == AttachmentTypeExternal && req.URL != nil:
		if *req.URL == "" {
			return nil, plan, ErrMissingURL
		}
		next.URL = *req.URL
	}

	if req.Title != nil {
		next.Title = *req.Title
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	return next, plan, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
