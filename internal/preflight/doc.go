// Package preflight provides readiness checks for the tracking service
// and filesystem paths that intake depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup so a misconfigured tracking
//     endpoint or an unwritable delivery root surfaces before any
//     delivery is touched.
//   - The CLI "intake status" command uses individual check functions
//     (CheckTracking, CheckDirectoryAccess) to display service health.
//
// Optional paths are skipped when unconfigured; required checks always run.
package preflight
