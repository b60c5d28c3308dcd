// Package descriptor supplies the ordered module list a shell is seeded from.
//
// Modules come from a YAML or JSON manifest:
//
//	modules:
//	  - name: core
//	    rank: 0
//	    steps:
//	      - id: home
//	        title: Home
//	        view: HomeView
//	        viewmodel: HomeViewModel
//	        parameters:
//	          mode: browse
//
// or from the fluent Builder. Step ids may be UUIDs or free-form slugs; slugs
// and missing ids are mapped to name-based (SHA-1) UUIDs so the same
// manifest always yields the same node ids.
package descriptor
