package ports

// Intake is a long-running surface that feeds content into the analysis service
type Intake interface {
	// Start starts the intake service
	Start() error

	// Stop stops the intake service
	Stop() error
}
