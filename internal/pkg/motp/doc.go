// Package motp implements the Mobile-OTP verification primitives.
//
// A token derives a six character code from a shared secret, a numeric PIN
// and a ten second time slot. The digest is md5, fixed by the deployed token
// clients. It is weak and must not be chosen for new, non-interoperating
// deployments.
//
// Verification is pure: Window.Generate lists the candidates around a moment
// in time, MatchPlain compares a presented passphrase against them and
// MatchMSCHAPv2 compares an RFC 2759 NT-Response computed with each candidate
// as the password.
package motp
