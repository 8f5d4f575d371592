// Package jwt issues and validates HMAC-signed bearer tokens.
//
// A [Manager] is pinned to exactly one algorithm (HS256, HS384 or HS512) and
// one secret at construction. Validation rejects any token whose header names
// a different algorithm before the signature is even checked, and requires
// exp strictly in the future with zero leeway. Rejections are returned as
// [*ValidationError] with a [Kind] of malformed, bad signature or expired.
package jwt
