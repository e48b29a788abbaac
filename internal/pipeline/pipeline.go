// Package pipeline composes the eight guard components into the
// defense-in-depth chain every document-fill request passes through:
// admission, path confinement, memory budgeting, input validation, BiDi
// sanitization, template verification, PII redaction, and audit logging.
//
// Each guard receives plain data and returns a verdict or sanitized value;
// none depends on another's internals. The pipeline owns the composition
// order and the rule that every security-class denial produces exactly one
// SECURITY audit entry before the verdict reaches the caller.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/right-flow/docguard/internal/audit"
	"github.com/right-flow/docguard/internal/bidi"
	"github.com/right-flow/docguard/internal/errors"
	"github.com/right-flow/docguard/internal/logging"
	"github.com/right-flow/docguard/internal/memory"
	"github.com/right-flow/docguard/internal/pathsec"
	"github.com/right-flow/docguard/internal/pii"
	"github.com/right-flow/docguard/internal/ratelimit"
	"github.com/right-flow/docguard/internal/registry"
	"github.com/right-flow/docguard/internal/validation"
	"github.com/right-flow/docguard/internal/verify"
)

// Request carries everything the pipeline needs to judge one document fill.
type Request struct {
	ClientID  string
	UserID    string
	IPAddress string

	// TemplatePath is resolved against BaseDir, which must be whitelisted.
	TemplatePath string
	BaseDir      string
	// ExpectedChecksum overrides the registry lookup when set.
	ExpectedChecksum string

	Fields map[string]interface{}
	Schema validation.Schema

	// SizeBytes is the caller's estimate of the document's in-flight size.
	SizeBytes int64
}

// Verdict is the pipeline's answer. Allowed verdicts carry the sanitized
// fields and canonical template path and must be closed out with Finish.
type Verdict struct {
	RequestID   string
	Allowed     bool
	Code        string
	Reason      string
	RetryAfter  time.Duration
	FieldErrors []string

	// Sanitized outputs, populated on allowed verdicts.
	Fields       map[string]interface{}
	TemplatePath string

	clientID string
	reserved bool
}

// Pipeline wires the guards together. Construct with New; all dependencies
// are required except the registry and metrics.
type Pipeline struct {
	limiter   *ratelimit.Limiter
	paths     *pathsec.Sanitizer
	mem       *memory.Manager
	validator *validation.Validator
	hebrew    *bidi.Sanitizer
	verifier  *verify.Verifier
	piih      *pii.Handler
	auditor   *audit.Logger
	reg       *registry.Registry
	logger    logging.Logger
	metrics   *Metrics
}

// Options collects the pipeline's collaborators.
type Options struct {
	Limiter   *ratelimit.Limiter
	Paths     *pathsec.Sanitizer
	Memory    *memory.Manager
	Validator *validation.Validator
	Hebrew    *bidi.Sanitizer
	Verifier  *verify.Verifier
	PII       *pii.Handler
	Auditor   *audit.Logger
	Registry  *registry.Registry // optional
	Logger    logging.Logger     // optional
	Metrics   *Metrics           // optional
}

// New assembles a Pipeline from its guard components.
func New(opts Options) (*Pipeline, error) {
	if opts.Limiter == nil || opts.Paths == nil || opts.Memory == nil ||
		opts.Validator == nil || opts.Hebrew == nil || opts.Verifier == nil ||
		opts.PII == nil || opts.Auditor == nil {
		return nil, errors.NewConfigError("INVALID_CONFIG", "pipeline requires all eight guard components")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Pipeline{
		limiter:   opts.Limiter,
		paths:     opts.Paths,
		mem:       opts.Memory,
		validator: opts.Validator,
		hebrew:    opts.Hebrew,
		verifier:  opts.Verifier,
		piih:      opts.PII,
		auditor:   opts.Auditor,
		reg:       opts.Registry,
		logger:    logger.WithComponent("pipeline"),
		metrics:   opts.Metrics,
	}, nil
}

// Process runs req through the full guard chain. Allowed verdicts hold
// admission and memory reservations until Finish is called; denied verdicts
// have already released everything.
func (p *Pipeline) Process(ctx context.Context, req Request) Verdict {
	start := time.Now()
	defer func() {
		p.metrics.observeDuration(time.Since(start).Seconds())
	}()

	verdict := Verdict{RequestID: uuid.NewString(), clientID: req.ClientID}

	// 1. Admission.
	decision := p.limiter.Check(req.ClientID)
	if !decision.Allowed {
		p.metrics.deny("ratelimit")
		p.auditor.LogRateLimitViolation(req.ClientID, decision.Reason)

		verdict.Code = decision.Reason
		verdict.Reason = "too many requests, retry later"
		verdict.RetryAfter = decision.RetryAfter
		return verdict
	}
	p.metrics.allow("ratelimit")

	denied := func(v Verdict) Verdict {
		p.limiter.Release(req.ClientID)
		if v.reserved {
			p.mem.Release(v.RequestID)
		}
		return v
	}

	// 2. Path confinement.
	if req.TemplatePath != "" {
		resolved, err := p.paths.Sanitize(req.TemplatePath, req.BaseDir)
		if err != nil {
			p.metrics.deny("pathsec")
			p.auditSecurity(ctx, "path_violation", err, map[string]interface{}{
				"clientId": req.ClientID,
				"userId":   req.UserID,
			})
			return denied(p.securityVerdict(verdict, err))
		}
		verdict.TemplatePath = resolved
		p.metrics.allow("pathsec")
	}

	// 3. Memory budget.
	if req.SizeBytes > 0 {
		if err := p.mem.Allocate(verdict.RequestID, req.SizeBytes); err != nil {
			p.metrics.deny("memory")
			p.auditor.Warn("memory_budget", "allocation denied", map[string]interface{}{
				"clientId": req.ClientID,
				"code":     errors.CodeOf(err),
			})

			verdict.Code = errors.CodeOf(err)
			verdict.Reason = "document too large or capacity exhausted, retry with a smaller document or later"
			verdict.RetryAfter = time.Second
			return denied(verdict)
		}
		verdict.reserved = true
		p.metrics.allow("memory")
	}

	// 4. Schema validation.
	if req.Schema != nil {
		result := p.validator.Validate(req.Fields, req.Schema)
		if !result.Valid {
			p.metrics.deny("validation")
			p.auditor.Warn("input_validation", "payload rejected", map[string]interface{}{
				"clientId":   req.ClientID,
				"violations": len(result.Errors),
			})

			verdict.Code = "FIELD_VALIDATION"
			verdict.Reason = "payload failed schema validation"
			verdict.FieldErrors = result.Errors
			return denied(verdict)
		}
		p.metrics.allow("validation")
	}

	// 5. BiDi sanitization. Control characters are stripped rather than
	// denied, but their presence is a security event worth recording.
	verdict.Fields = p.sanitizeFields(ctx, req)

	// 6. Template integrity.
	if verdict.TemplatePath != "" {
		if err := p.verifyTemplate(verdict.TemplatePath, req.ExpectedChecksum); err != nil {
			p.metrics.deny("verify")
			p.auditSecurity(ctx, "template_violation", err, map[string]interface{}{
				"clientId": req.ClientID,
				"userId":   req.UserID,
			})
			return denied(p.securityVerdict(verdict, err))
		}
		p.metrics.allow("verify")
	}

	// 7-8. PII and audit are cross-cutting: the pii handler sanitized
	// everything recorded above, and the admitted decision is recorded too.
	p.auditor.Info("document_fill_admitted", "request cleared the security pipeline",
		map[string]interface{}{
			"requestId": verdict.RequestID,
			"clientId":  req.ClientID,
		})

	verdict.Allowed = true
	return verdict
}

// Finish releases the admission slot and memory reservation held by an
// allowed verdict. Safe to call on denied verdicts.
func (p *Pipeline) Finish(v Verdict) {
	if !v.Allowed {
		return
	}

	p.limiter.Release(v.clientID)
	if v.reserved {
		p.mem.Release(v.RequestID)
	}
}

// sanitizeFields strips BiDi controls from every string field and reports
// suspicious findings once per request.
func (p *Pipeline) sanitizeFields(ctx context.Context, req Request) map[string]interface{} {
	if req.Fields == nil {
		return nil
	}

	out := make(map[string]interface{}, len(req.Fields))
	var suspicious []string

	for name, value := range req.Fields {
		s, ok := value.(string)
		if !ok {
			out[name] = value
			continue
		}

		if report := p.hebrew.Inspect(s); report.Suspicious() {
			suspicious = append(suspicious, name)
		}
		out[name] = p.hebrew.Sanitize(s)
	}

	if len(suspicious) > 0 {
		p.metrics.deny("bidi")
		p.auditor.LogSecurityViolation("bidi_sanitized", "directional controls stripped from fields",
			map[string]interface{}{
				"clientId": req.ClientID,
				"fields":   suspicious,
				"code":     errors.CodeBiDiDetected,
			})
	} else {
		p.metrics.allow("bidi")
	}

	return out
}

func (p *Pipeline) verifyTemplate(path, expectedChecksum string) error {
	if expectedChecksum != "" {
		return p.verifier.ValidateTemplate(path, expectedChecksum)
	}
	if p.reg != nil {
		return p.reg.Verify(path)
	}

	// No trusted checksum available; the safety scan still applies.
	return p.verifier.ScanPDF(path)
}

// auditSecurity writes the single SECURITY entry for a denial. The error
// text passes through the PII handler so attack evidence never carries raw
// identity data.
func (p *Pipeline) auditSecurity(ctx context.Context, action string, err error, metadata map[string]interface{}) {
	metadata["code"] = errors.CodeOf(err)
	metadata["detail"] = p.piih.Sanitize(err.Error())
	if errCtx := errors.ContextOf(err); len(errCtx) > 0 {
		metadata["evidence"] = p.piih.SanitizeObject(errCtx)
	}

	if auditErr := p.auditor.LogSecurityViolation(action, "request denied by security pipeline", metadata); auditErr != nil {
		p.logger.Error(ctx, auditErr, "failed to audit security violation")
	}
}

// securityVerdict builds the user-facing denial for a security error:
// generic to the end user, detailed internally (in the audit trail).
func (p *Pipeline) securityVerdict(v Verdict, err error) Verdict {
	v.Allowed = false
	v.Code = errors.CodeOf(err)
	v.Reason = "request rejected"
	return v
}
