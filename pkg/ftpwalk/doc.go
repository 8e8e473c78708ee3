// Package ftpwalk provides the remote session abstraction and the
// directory walker for the CAGED FTP tree.
//
// Session wraps a stateful FTP connection: relative navigation with
// ChangeDir/ChangeDirUp, name listing, and binary retrieval. The Walker
// filters listings structurally (4-digit years, 6-digit year-months,
// archive files) and degrades a failed listing to an empty result so a
// single rejected directory does not stop the traversal of its siblings.
package ftpwalk
