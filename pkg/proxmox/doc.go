// Package proxmox is the thin control-plane collaborator: a REST
// client for Proxmox VE-style management APIs with token
// authentication, the JSON data envelope, and classification of API
// failures into the engine error taxonomy. Resource field mapping
// lives in package providers; this package only moves requests and
// classifies responses.
package proxmox
