package index

import (
	"testing"

	"chemident/testutil"
)

func TestIndexUsesStoreWrappersOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "index goes through internal/blob and internal/source")
}
