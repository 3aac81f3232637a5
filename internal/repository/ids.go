package repository

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh record identifier. Identifiers are ObjectID hex
// strings for every store so records can move between them.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
