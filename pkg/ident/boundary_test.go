package ident

import (
	"testing"

	"chemident/testutil"
)

func TestIdentStaysFreeOfInternalPackages(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "pkg/ident is the public identifier type")
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InternalImportForbidden, "pkg/ident is the public identifier type")
}
