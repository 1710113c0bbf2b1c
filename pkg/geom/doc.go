// Package geom holds the 2D geometry shared by the scene graph, the stitch
// generators and the routing pass. All coordinates are millimeters in design
// space with Y pointing down.
package geom
