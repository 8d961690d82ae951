package ports

// Frontend is an inbound surface serving analysis requests
type Frontend interface {
	// Start begins serving in the background
	Start() error

	// Stop gracefully shuts the frontend down
	Stop() error
}
