// Package integrationtests runs the whole load, build, rewrite and write
// pipeline against HCL files.
package integrationtests
