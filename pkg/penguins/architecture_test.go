package penguins

import (
	"testing"

	"penguinboard/testutil"
)

func TestPenguinsPackageStaysPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InternalImportForbidden, testutil.TransportImportForbidden),
		"pkg/penguins is the shared domain contract and must not depend on internal or transport packages")
}

func TestPenguinsPackageHasNoTransportDependencies(t *testing.T) {
	if testing.Short() {
		t.Skip("runs go list")
	}
	testutil.AssertNoTransitiveDependency(t, "penguinboard/pkg/penguins",
		testutil.AnyOf(testutil.InternalImportForbidden, testutil.TransportImportForbidden),
		"the domain package must build without HTTP, SQL or internal packages")
}
