/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
)

// RemediationValidator renders a proposed remediation into a concrete
// mutation and checks it with a server-side dry-run. Rejections are attached
// to the plan, not thrown, so the controller can route them back to
// diagnosis.
type RemediationValidator struct {
	clientset kubernetes.Interface
	logger    *zap.Logger
}

// NewRemediationValidator creates a validator over the cluster API.
func NewRemediationValidator(clientset kubernetes.Interface, logger *zap.Logger) *RemediationValidator {
	return &RemediationValidator{clientset: clientset, logger: logger}
}

// Validate produces a RemediationPlan for the diagnosis. The returned error
// is non-nil only for infrastructure failures (cluster unreachable); domain
// rejections come back as a plan with Validation == rejected.
func (v *RemediationValidator) Validate(ctx context.Context, diag *Diagnosis) (*RemediationPlan, error) {
	plan := &RemediationPlan{
		Target:     diag.Target,
		Action:     diag.Action,
		Risk:       diag.Risk,
		Validation: ValidationPending,
	}

	if diag.Fault == FaultUnknown {
		return reject(plan, RejectUnsupportedFault, "cannot validate a plan for an unknown fault category"), nil
	}

	if err := v.render(plan); err != nil {
		return reject(plan, RejectSchemaInvalid, err.Error()), nil
	}

	if err := v.dryRun(ctx, plan); err != nil {
		if isTransientAPIError(err) {
			return nil, fmt.Errorf("dry-run could not reach the cluster: %w", err)
		}
		return reject(plan, RejectDryRunRejected, err.Error()), nil
	}

	plan.Validation = ValidationAccepted
	v.logger.Info("Plan accepted by dry-run",
		zap.String("target", plan.Target.String()),
		zap.String("action", string(plan.Action.Type)),
		zap.String("risk", string(plan.Risk)))

	return plan, nil
}

func reject(plan *RemediationPlan, reason RejectionReason, detail string) *RemediationPlan {
	plan.Validation = ValidationRejected
	plan.Rejection = reason
	plan.RejectionDetail = detail
	return plan
}

// render turns the typed action into the patch payload or workload manifest,
// performing structural validation against the target kind's constraints.
func (v *RemediationValidator) render(plan *RemediationPlan) error {
	action := plan.Action

	switch action.Type {
	case ActionPatchResources:
		return v.renderResourcePatch(plan)
	case ActionSetImage:
		return v.renderImagePatch(plan)
	case ActionRestartRollout:
		return v.renderRestartPatch(plan)
	case ActionScaleReplicas:
		return v.renderScalePatch(plan)
	case ActionCreateWorkload:
		return v.renderWorkload(plan)
	}

	return fmt.Errorf("unsupported action type %q", action.Type)
}

func (v *RemediationValidator) renderResourcePatch(plan *RemediationPlan) error {
	action := plan.Action
	if action.Container == "" {
		return fmt.Errorf("patch_resources requires a container name")
	}

	limits := map[string]string{}
	requests := map[string]string{}

	for _, q := range []struct {
		value string
		key   string
		dest  map[string]string
	}{
		{action.CPULimit, "cpu", limits},
		{action.MemoryLimit, "memory", limits},
		{action.CPURequest, "cpu", requests},
		{action.MemoryRequest, "memory", requests},
	} {
		if q.value == "" {
			continue
		}
		if _, err := resource.ParseQuantity(q.value); err != nil {
			return fmt.Errorf("invalid %s quantity %q: %w", q.key, q.value, err)
		}
		q.dest[q.key] = q.value
	}

	if len(limits) == 0 && len(requests) == 0 {
		return fmt.Errorf("patch_resources has no limits or requests to change")
	}

	resources := map[string]interface{}{}
	if len(limits) > 0 {
		resources["limits"] = limits
	}
	if len(requests) > 0 {
		resources["requests"] = requests
	}

	plan.Description = fmt.Sprintf("adjust resources of container %q (limits=%v requests=%v)",
		action.Container, limits, requests)

	return setContainerPatch(plan, action.Container, map[string]interface{}{
		"resources": resources,
	})
}

func (v *RemediationValidator) renderImagePatch(plan *RemediationPlan) error {
	action := plan.Action
	if action.Container == "" {
		return fmt.Errorf("set_image requires a container name")
	}
	if action.Image == "" {
		return fmt.Errorf("set_image requires an image reference")
	}

	plan.Description = fmt.Sprintf("set image of container %q to %s", action.Container, action.Image)

	return setContainerPatch(plan, action.Container, map[string]interface{}{
		"image": action.Image,
	})
}

func (v *RemediationValidator) renderRestartPatch(plan *RemediationPlan) error {
	// Same mechanism as kubectl rollout restart: bump a template annotation
	// so a fresh rollout starts.
	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"annotations": map[string]string{
						"kubectl.kubernetes.io/restartedAt": time.Now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}

	plan.Description = "restart the deployment rollout"
	return marshalPatch(plan, patch)
}

func (v *RemediationValidator) renderScalePatch(plan *RemediationPlan) error {
	action := plan.Action
	if action.Replicas == nil {
		return fmt.Errorf("scale_replicas requires a replica count")
	}
	if *action.Replicas < 0 {
		return fmt.Errorf("replica count must be >= 0, got %d", *action.Replicas)
	}

	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"replicas": *action.Replicas,
		},
	}

	plan.Description = fmt.Sprintf("scale deployment to %d replicas", *action.Replicas)
	return marshalPatch(plan, patch)
}

// renderWorkload decodes a create_workload manifest into a typed Deployment.
// The rendered payload must be a structurally valid manifest suitable for
// direct application.
func (v *RemediationValidator) renderWorkload(plan *RemediationPlan) error {
	action := plan.Action
	if action.Manifest == nil {
		return fmt.Errorf("create_workload requires a manifest")
	}

	raw, err := json.Marshal(action.Manifest)
	if err != nil {
		return fmt.Errorf("manifest is not serializable: %w", err)
	}

	var deploy appsv1.Deployment
	if err := json.Unmarshal(raw, &deploy); err != nil {
		return fmt.Errorf("manifest does not decode as a Deployment: %w", err)
	}

	if deploy.APIVersion != "apps/v1" {
		return fmt.Errorf("manifest apiVersion must be apps/v1, got %q", deploy.APIVersion)
	}
	if deploy.Kind != "Deployment" {
		return fmt.Errorf("manifest kind must be Deployment, got %q", deploy.Kind)
	}
	if deploy.Name == "" {
		return fmt.Errorf("manifest is missing metadata.name")
	}
	if len(deploy.Spec.Template.Spec.Containers) == 0 {
		return fmt.Errorf("manifest spec has no containers")
	}
	if deploy.Namespace == "" {
		deploy.Namespace = plan.Target.Namespace
	}
	if deploy.Namespace != plan.Target.Namespace || deploy.Name != plan.Target.Name {
		return fmt.Errorf("manifest identity %s/%s does not match diagnosis target %s",
			deploy.Namespace, deploy.Name, plan.Target)
	}

	plan.Workload = &deploy
	plan.Description = fmt.Sprintf("create workload %s/%s", deploy.Namespace, deploy.Name)
	return nil
}

func setContainerPatch(plan *RemediationPlan, container string, fields map[string]interface{}) error {
	entry := map[string]interface{}{"name": container}
	for k, val := range fields {
		entry[k] = val
	}

	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"containers": []interface{}{entry},
				},
			},
		},
	}

	return marshalPatch(plan, patch)
}

func marshalPatch(plan *RemediationPlan, patch map[string]interface{}) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal patch: %w", err)
	}
	plan.Patch = raw
	return nil
}

// dryRun submits the mutation with DryRunAll so the API server validates it
// without persisting anything.
func (v *RemediationValidator) dryRun(ctx context.Context, plan *RemediationPlan) error {
	if plan.Workload != nil {
		_, err := v.clientset.AppsV1().Deployments(plan.Target.Namespace).Create(ctx, plan.Workload, metav1.CreateOptions{
			DryRun: []string{metav1.DryRunAll},
		})
		return err
	}

	_, err := v.clientset.AppsV1().Deployments(plan.Target.Namespace).Patch(ctx, plan.Target.Name,
		types.StrategicMergePatchType, plan.Patch, metav1.PatchOptions{
			DryRun: []string{metav1.DryRunAll},
		})
	return err
}

// RenderedPayload returns the concrete mutation as JSON: the strategic merge
// patch, or the full manifest for create_workload plans. Parsing it back
// reproduces the same target identity and action parameters.
func (p *RemediationPlan) RenderedPayload() ([]byte, error) {
	if p.Workload != nil {
		return json.Marshal(p.Workload)
	}
	if len(p.Patch) == 0 {
		return nil, fmt.Errorf("plan has no rendered payload")
	}
	return p.Patch, nil
}

// isTransientAPIError separates "the cluster could not be reached" from "the
// cluster rejected the request". The controller's transitions depend on this
// distinction.
func isTransientAPIError(err error) bool {
	return apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsUnexpectedServerError(err)
}
