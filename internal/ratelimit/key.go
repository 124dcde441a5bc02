package ratelimit

// KeyPrefix namespaces every bucket key in the store. Collaborators that
// derive keys themselves must follow the same convention or per-subject and
// per-operation limits silently stop composing.
const KeyPrefix = "rate_limit:"

// Key returns the bucket key for a whole-subject limit. The mapping is
// deterministic: identical subjects always produce identical keys.
func Key(subject string) string {
	return KeyPrefix + subject
}

// OperationKey returns the bucket key for a per-operation limit, kept
// separate from the subject's whole-budget bucket.
func OperationKey(subject, operation string) string {
	return KeyPrefix + subject + ":" + operation
}
