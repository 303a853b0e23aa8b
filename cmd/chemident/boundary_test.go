package main

import (
	"testing"

	"chemident/testutil"
)

func TestCommandsUseStoreWrappersOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "commands open stores through factories")
}
