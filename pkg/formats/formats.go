// Package formats provides readers and writers for mesh interchange formats
// (OBJ, PLY, STL, glTF) and the voxel overlay point list.
package formats
