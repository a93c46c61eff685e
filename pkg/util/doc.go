// Package util provides shared helpers for value truncation and safe
// file-path validation used across capturelog packages.
//
//   - Truncate / TruncateBody: cap captured property values and bodies
//   - SafeFilePath / SafeFilePathAllowAbsolute: reject path-traversal attempts
package util
