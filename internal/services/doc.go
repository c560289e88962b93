// Package services defines the shared error taxonomy and context carriers
// used across pipeline stages and remote service clients.
package services
