// Package formats provides parsers for the model, map and mesh files baked
// into vertex animation textures: RSM models, RSW map placements and
// Wavefront OBJ frames.
package formats
