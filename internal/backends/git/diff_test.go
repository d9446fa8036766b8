package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const stagedDiff = `diff --git a/backend/apps/orders/views.py b/backend/apps/orders/views.py
index 3b18e51..a4c2f0d 100644
--- a/backend/apps/orders/views.py
+++ b/backend/apps/orders/views.py
@@ -12,2 +11,0 @@ class OrderView:
-def checkout(self, request):
-    return self.process(request)
@@ -40 +38 @@ def helper():
-    x = 1
+    x = 2
`

func TestDeletedLines(t *testing.T) {
	got := DeletedLines(stagedDiff)
	assert.Equal(t, []string{
		"def checkout(self, request):",
		"    return self.process(request)",
		"    x = 1",
	}, got)
}

func TestDeletedLines_Empty(t *testing.T) {
	assert.Nil(t, DeletedLines(""))
	assert.Nil(t, DeletedLines("  \n"))
}

func TestDeletedLines_Unparsable(t *testing.T) {
	raw := "--- a/x.py\n-def gone():\n+def kept():\n"
	assert.Equal(t, []string{"def gone():"}, DeletedLines(raw))
}
