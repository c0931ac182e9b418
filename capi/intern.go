//go:build capi_intern

package capi

// acceptInternal admits PBX internal callers ("**" sources) with any service
// indicator.
const acceptInternal = true
