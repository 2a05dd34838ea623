// Package moderation provides content filtering and moderation capabilities.
// It screens chat messages for phone and account numbers, contact details,
// links and profanity, decides whether a message may be delivered, and
// produces a redacted copy of the text.
//
// The package is pure: detectors operate on plain strings and never perform
// I/O. The only process-wide state is the profanity lexicon, which can be
// extended at runtime with AddCustomProfanity and is shared by every Engine.
package moderation
