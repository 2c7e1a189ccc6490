package decision

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/types"
)

func TestStatusIsContinue(t *testing.T) {
	assert.True(t, Status{}.IsContinue())
	assert.True(t, MoveOnStatus().IsContinue())
	assert.False(t, AllowedStatus().IsContinue())
	assert.False(t, DeniedStatus(IngressNoTLS{}).IsContinue())
	assert.False(t, InvalidStatus("x").IsContinue())
}

func TestFromCheckResult(t *testing.T) {
	t.Run("error folds to internal error denial", func(t *testing.T) {
		s := FromCheckResult(MoveOnStatus(), errors.New("boom"))
		assert.Equal(t, Denied, s.Kind)
		var ie InternalError
		assert.ErrorAs(t, s.Reason, &ie)
	})

	t.Run("no error passes status through", func(t *testing.T) {
		s := FromCheckResult(AllowedStatus(), nil)
		assert.Equal(t, Allowed, s.Kind)
	})
}

func TestAdmissionMessage(t *testing.T) {
	assert.Equal(t, "default/my-ingress: boom", AdmissionMessage("default", "my-ingress", "boom"))
	assert.Equal(t, "CLUSTERED/my-gateway: boom", AdmissionMessage("", "my-gateway", "boom"))
}

func TestGatewayNonRedirectDenyReasonDedupesAndSortsRoutes(t *testing.T) {
	d := GatewayNonRedirectHTTPRouteAttachedToHTTPListener{
		Bad: []BadListener{
			{
				ListenerName: "http",
				BadRoutes: []types.NamespacedName{
					{Namespace: "b", Name: "y"},
					{Namespace: "a", Name: "z"},
					{Namespace: "a", Name: "z"},
				},
			},
		},
	}
	assert.Equal(t, `Gateway has HTTP listener(s) with non-redirect HTTPRoutes attached: listener "http" attached by a/z, b/y;`, d.Error())
}

func TestPartitionBy(t *testing.T) {
	p := PartitionBy([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []int{2, 4}, p.Good)
	assert.Equal(t, []int{1, 3}, p.Bad)
}
