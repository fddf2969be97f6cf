package mcpserver

// ComplianceCharter describes the rules every guarded action is evaluated
// against and the record shapes LLM consumers should produce.
const ComplianceCharter = `# Tiwaz Compliance Charter

Every guarded action (creating or changing records, querying counsel)
is evaluated against this rule set BEFORE it executes. Verdicts have
three severities:

- **pass** – the action runs.
- **warn** – the action stops unless the caller approves it with
  ` + "`" + `override=true` + "`" + `. Overrides are recorded in the audit trail.
- **block** – the action never runs. There is no override for a block.

## Rules

1. **Confidentiality (ABA Model Rule 1.6).** Any payload containing
   sensitive terms (SSN, Social Security, DOB, Date of Birth, medical,
   diagnosis, plus operator-configured patterns) draws a warning.
   Confirm the disclosure is authorized before overriding.
2. **Conflict of interest (ABA Model Rule 1.7).** Creating or updating a
   client or case file whose named party matches an adverse party of an
   existing matter is blocked.
3. **Unauthorized practice (ABA Model Rule 5.5).** Case-file work and
   counsel queries naming a jurisdiction the practice is not licensed in
   are blocked. Omit the jurisdiction only when the question is truly
   jurisdiction-neutral.

## Record kinds

` + "```" + `
client     – name (required), contact (optional email)
case_file  – title, client (both required); adverse_parties, jurisdiction
contract   – title, counterparty (both required)
note       – text (required)
feedback   – rating 1–5 (optional), comments
guideline  – reference, text (both required)
` + "```" + `

Extra fields are allowed on every kind; the listed ones are enforced.
Tags are lowercase strings used for filtering (e.g. ` + "`" + `caselaw` + "`" + `,
` + "`" + `training` + "`" + `, ` + "`" + `active` + "`" + `).

## Counsel queries

Every successful counsel response ends with a disclaimer naming the
practice jurisdiction. Model output is never legal advice; a licensed
attorney reviews everything before it leaves the practice. A failed
provider call returns its failure as text prefixed with
` + "`" + `[provider-error]` + "`" + ` rather than an exception.

## Audit

Every decision point writes exactly one audit event: blocks, overrides,
cancellations, and executions alike. The trail is append-only.
`
