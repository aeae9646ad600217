package export

import "errors"

var (
	ErrUnknownType      = errors.New("no producer for export type")
	ErrProducer         = errors.New("export data query failed")
	ErrArtifactNotFound = errors.New("export artifact not found")
)
